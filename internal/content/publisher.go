// Package content uploads event metadata documents and their image assets to
// the content-addressed store and returns the resulting stable reference.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nyuiela/revent/internal/platform/timeouts"
	"github.com/nyuiela/revent/internal/publication/domain"
)

// Asset is a staged binary payload uploaded alongside the document.
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
}

// Document is the structured event description uploaded to the content store.
type Document struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Location    string              `json:"location,omitempty"`
	Category    string              `json:"category,omitempty"`
	StartTime   int64               `json:"startTime"`
	EndTime     int64               `json:"endTime"`
	Capacity    int                 `json:"capacity,omitempty"`
	Image       string              `json:"image,omitempty"`
	Hosts       []DocumentHost      `json:"hosts,omitempty"`
	Agenda      []DocumentAgendaRow `json:"agenda,omitempty"`
	Socials     map[string]string   `json:"socials,omitempty"`
}

// DocumentHost is one host entry inside the uploaded document.
type DocumentHost struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// DocumentAgendaRow is one agenda entry inside the uploaded document.
type DocumentAgendaRow struct {
	Title     string `json:"title"`
	Speaker   string `json:"speaker,omitempty"`
	StartTime int64  `json:"startTime,omitempty"`
}

// DocumentFromRequest projects a publication request into the uploadable
// document shape. The image field is filled in after the asset upload.
func DocumentFromRequest(req domain.PublicationRequest) Document {
	doc := Document{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		Category:    req.Category,
		StartTime:   req.StartTime.Unix(),
		EndTime:     req.EndTime.Unix(),
		Capacity:    req.Capacity,
	}
	for _, host := range req.Hosts {
		doc.Hosts = append(doc.Hosts, DocumentHost{Name: host.Name, Address: host.Address})
	}
	for _, item := range req.Agenda {
		row := DocumentAgendaRow{Title: item.Title, Speaker: item.Speaker}
		if !item.StartTime.IsZero() {
			row.StartTime = item.StartTime.Unix()
		}
		doc.Agenda = append(doc.Agenda, row)
	}
	for _, link := range req.SocialLinks {
		if doc.Socials == nil {
			doc.Socials = make(map[string]string, len(req.SocialLinks))
		}
		doc.Socials[link.Platform] = link.URL
	}
	return doc
}

// Publisher uploads documents and assets to the content store. It performs no
// retries; retry policy belongs to the caller.
type Publisher struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewPublisher creates a content store publisher for the given base URL.
func NewPublisher(baseURL, authToken string) (*Publisher, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("content store base url is required")
	}
	return &Publisher{
		baseURL:    baseURL,
		authToken:  strings.TrimSpace(authToken),
		httpClient: &http.Client{Timeout: timeouts.Upload},
	}, nil
}

// Publish uploads the optional asset, then the document referencing the
// asset's resulting location, and returns the document's content reference.
// A non-2xx response on either upload is a hard failure for the whole call.
func (p *Publisher) Publish(ctx context.Context, doc Document, asset *Asset) (domain.ContentReference, error) {
	if strings.TrimSpace(doc.Title) == "" {
		return "", &domain.ValidationError{Field: "title", Reason: "document title is required"}
	}

	if asset != nil && len(asset.Data) > 0 {
		contentURL, err := p.uploadAsset(ctx, asset)
		if err != nil {
			return "", err
		}
		doc.Image = contentURL
	}

	return p.uploadDocument(ctx, doc)
}

func (p *Publisher) uploadAsset(ctx context.Context, asset *Asset) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/upload", bytes.NewReader(asset.Data))
	if err != nil {
		return "", &domain.UploadError{Target: "asset", Err: err}
	}
	contentType := asset.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if asset.Name != "" {
		req.Header.Set("X-File-Name", asset.Name)
	}
	p.authorize(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &domain.UploadError{Target: "asset", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &domain.UploadError{Target: "asset", Status: resp.StatusCode}
	}

	var payload struct {
		ContentURL string `json:"contentUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &domain.UploadError{Target: "asset", Err: err}
	}
	if payload.ContentURL == "" {
		return "", &domain.UploadError{Target: "asset", Err: fmt.Errorf("missing content url in response")}
	}
	return payload.ContentURL, nil
}

func (p *Publisher) uploadDocument(ctx context.Context, doc Document) (domain.ContentReference, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", &domain.UploadError{Target: "document", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/metadata", bytes.NewReader(body))
	if err != nil {
		return "", &domain.UploadError{Target: "document", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	p.authorize(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &domain.UploadError{Target: "document", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &domain.UploadError{Target: "document", Status: resp.StatusCode}
	}

	var payload struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &domain.UploadError{Target: "document", Err: err}
	}
	if payload.URI == "" {
		return "", &domain.UploadError{Target: "document", Err: fmt.Errorf("missing uri in response")}
	}
	return domain.ContentReference(payload.URI), nil
}

func (p *Publisher) authorize(req *http.Request) {
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}
}

// WithHTTPClient overrides the HTTP client, primarily for tests.
func (p *Publisher) WithHTTPClient(client *http.Client) *Publisher {
	if client != nil {
		p.httpClient = client
	}
	return p
}
