// Package batch builds the ordered operation batches submitted to the
// transaction boundary, one per publication stage. Builders are pure and
// deterministic: identical input yields a structurally equal batch.
package batch

// Target identifies the on-chain resource an operation addresses.
type Target string

const (
	// TargetEventFactory creates event records.
	TargetEventFactory Target = "event-factory"
	// TargetTicketMinter issues ticket types for an event.
	TargetTicketMinter Target = "ticket-minter"
	// TargetDomainRegistrar registers event domain names.
	TargetDomainRegistrar Target = "domain-registrar"
)

// ArgType labels the wire type of one operation argument.
type ArgType string

const (
	ArgTypeString ArgType = "string"
	ArgTypeUint   ArgType = "uint256"
	ArgTypeBool   ArgType = "bool"
)

// Arg is one typed, named operation argument.
type Arg struct {
	Name  string  `json:"name"`
	Type  ArgType `json:"type"`
	Value string  `json:"value"`
}

// Operation is one descriptor in a batch: a target resource, an operation
// name, and an ordered typed argument list.
type Operation struct {
	Target Target `json:"target"`
	Name   string `json:"name"`
	Args   []Arg  `json:"args"`
}

// Batch is an ordered list of operation descriptors. Batches are produced
// fresh per stage and never mutated after construction.
type Batch struct {
	Operations []Operation `json:"operations"`
}

// Empty reports whether the batch has nothing to submit. Callers must treat
// an empty batch as "nothing to submit", not as a failure.
func (b Batch) Empty() bool {
	return len(b.Operations) == 0
}
