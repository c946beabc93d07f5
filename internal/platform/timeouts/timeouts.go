// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// HTTPRequest caps the time allowed for a single outbound HTTP call to a
// collaborator service (content store, event index, name registry, relay).
const HTTPRequest = 15 * time.Second

// Upload caps the time allowed for a metadata or asset upload, which can
// carry multi-megabyte image payloads.
const Upload = 60 * time.Second

// Shutdown limits how long the runtime waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
