// Package esign creates and sends three-party signing documents through PandaDoc.
package esign

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apphttp "hire-onboarding/internal/common/http"
)

// Provider document statuses.
const (
	StatusUploaded  = "document.uploaded"
	StatusDraft     = "document.draft"
	StatusSent      = "document.sent"
	StatusCompleted = "document.completed"
	StatusError     = "document.error"
)

// Recipient is one signer on the document.
type Recipient struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Role         string `json:"role"`
	SigningOrder int    `json:"signing_order"`
}

// Token fills a template variable.
type Token struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CreateDocumentRequest struct {
	Name         string            `json:"name"`
	TemplateUUID string            `json:"template_uuid"`
	Recipients   []Recipient       `json:"recipients"`
	Tokens       []Token           `json:"tokens,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type Document struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type sendDocumentRequest struct {
	Subject string `json:"subject,omitempty"`
	Message string `json:"message,omitempty"`
	Silent  bool   `json:"silent"`
}

// API is the provider surface used by the orchestrator.
type API interface {
	CreateDocument(ctx context.Context, req *CreateDocumentRequest) (*Document, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	SendDocument(ctx context.Context, id, subject, message string) error
}

// Client is the PandaDoc REST client, authenticated with an API key.
type Client struct {
	apiKey  string
	baseURL string
	http    *apphttp.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, apiKey, apphttp.NewClient(timeout))
}

func NewClientWithHTTP(baseURL, apiKey string, hc *apphttp.Client) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "API-Key " + c.apiKey}
}

func (c *Client) CreateDocument(ctx context.Context, req *CreateDocumentRequest) (*Document, error) {
	var doc Document
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/documents", c.headers(), req, &doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("create document: response has no id")
	}
	return &doc, nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	u := fmt.Sprintf("%s/documents/%s", c.baseURL, url.PathEscape(id))
	if err := c.http.DoJSON(ctx, http.MethodGet, u, c.headers(), nil, &doc); err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

func (c *Client) SendDocument(ctx context.Context, id, subject, message string) error {
	u := fmt.Sprintf("%s/documents/%s/send", c.baseURL, url.PathEscape(id))
	body := sendDocumentRequest{Subject: subject, Message: message}
	if err := c.http.DoJSON(ctx, http.MethodPost, u, c.headers(), body, nil); err != nil {
		return fmt.Errorf("send document %s: %w", id, err)
	}
	return nil
}
