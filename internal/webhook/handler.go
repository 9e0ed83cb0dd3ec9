// Package webhook consumes e-signature provider callbacks.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/common/metrics"
	"hire-onboarding/internal/esign"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/onboarding"

	"github.com/gin-gonic/gin"
)

const (
	EventDocumentStateChanged = "document_state_changed"
	EventRecipientCompleted   = "recipient_completed"

	maxBodyBytes = 1 << 20
)

// Outcomes reported per event and used as the metrics label.
const (
	OutcomeProcessed = "processed"
	OutcomeNoop      = "noop"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// Lifecycle is the part of the request service driven by provider events.
type Lifecycle interface {
	RequestForDocument(ctx context.Context, documentID string) (*models.OnboardingRequest, error)
	RecordSignerCompleted(ctx context.Context, req *models.OnboardingRequest, email string) (*onboarding.SignerOutcome, error)
	CompleteDocument(ctx context.Context, req *models.OnboardingRequest) (bool, error)
}

type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

type EventData struct {
	ID         string      `json:"id"`
	Name       string      `json:"name,omitempty"`
	Status     string      `json:"status"`
	ActionBy   *Person     `json:"action_by,omitempty"`
	Recipients []Recipient `json:"recipients,omitempty"`
}

type Person struct {
	Email string `json:"email"`
}

type Recipient struct {
	Email        string `json:"email"`
	Role         string `json:"role,omitempty"`
	HasCompleted bool   `json:"has_completed"`
}

// EventResult is one entry of the acknowledgement body.
type EventResult struct {
	Event      string `json:"event"`
	DocumentID string `json:"documentId,omitempty"`
	Outcome    string `json:"outcome"`
	Role       string `json:"role,omitempty"`
}

type Handler struct {
	lifecycle Lifecycle
	dedup     Deduper
	key       []byte
	logger    logger.Logger
}

// NewHandler builds the handler. An empty key disables signature verification and a nil
// dedup processes every delivery.
func NewHandler(lc Lifecycle, dedup Deduper, key string, log logger.Logger) *Handler {
	if dedup == nil {
		dedup = noDedup{}
	}
	return &Handler{
		lifecycle: lc,
		dedup:     dedup,
		key:       []byte(key),
		logger:    logger.ForComponent(log, "webhook"),
	}
}

func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/webhooks/pandadoc", h.Handle)
}

// Handle acknowledges every delivery with 200 except a bad signature. Processing errors
// are logged so the provider does not retry storm.
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("failed to read webhook body", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusOK, gin.H{"status": "invalid_payload"})
		return
	}
	if !h.verify(body, c.Query("signature")) {
		metrics.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		h.logger.Warn("webhook signature mismatch", map[string]interface{}{"remoteAddr": c.ClientIP()})
		c.JSON(http.StatusUnauthorized, gin.H{"status": "invalid_signature"})
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		h.logger.Warn("unparseable webhook payload", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusOK, gin.H{"status": "invalid_payload"})
		return
	}

	results := make([]EventResult, 0, len(events))
	notFound := 0
	for _, e := range events {
		r := h.process(c.Request.Context(), e)
		metrics.WebhookEvents.WithLabelValues(eventLabel(e.Event), r.Outcome).Inc()
		if r.Outcome == OutcomeNotFound {
			notFound++
		}
		results = append(results, r)
	}

	status := "ok"
	if len(results) > 0 && notFound == len(results) {
		status = OutcomeNotFound
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "results": results})
}

func (h *Handler) verify(body []byte, signature string) bool {
	if len(h.key) == 0 {
		return true
	}
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the hex HMAC-SHA256 of body, the value the provider sends as ?signature=.
func Sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// decodeEvents accepts a JSON array of events or a single event object.
func decodeEvents(body []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}
	if trimmed[0] == '[' {
		var events []Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var e Event
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return nil, err
	}
	return []Event{e}, nil
}

func (h *Handler) process(ctx context.Context, e Event) EventResult {
	res := EventResult{Event: e.Event, DocumentID: e.Data.ID}
	fields := map[string]interface{}{"event": e.Event, "documentId": e.Data.ID, "status": e.Data.Status}

	var email string
	switch e.Event {
	case EventDocumentStateChanged:
		if !isCompleted(e.Data.Status) {
			h.logger.Debug("document state change ignored", fields)
			res.Outcome = OutcomeIgnored
			return res
		}
	case EventRecipientCompleted:
		email = completedEmail(e.Data)
		if email == "" {
			h.logger.Info("recipient_completed without a recipient email", fields)
			res.Outcome = OutcomeIgnored
			return res
		}
		fields["email"] = email
	default:
		h.logger.Info("unhandled webhook event", fields)
		res.Outcome = OutcomeIgnored
		return res
	}

	req, err := h.lifecycle.RequestForDocument(ctx, e.Data.ID)
	if errors.Is(err, onboarding.ErrUnknownDocument) {
		h.logger.Info("webhook for unknown document", fields)
		res.Outcome = OutcomeNotFound
		return res
	}
	if err != nil {
		h.logger.Error("failed to resolve webhook document", withErr(fields, err))
		res.Outcome = OutcomeError
		return res
	}
	fields["requestId"] = req.ID

	key := deliveryKey(e, email)
	if !h.dedup.FirstDelivery(ctx, key) {
		h.logger.Debug("duplicate webhook delivery", fields)
		res.Outcome = OutcomeDuplicate
		return res
	}

	if e.Event == EventDocumentStateChanged {
		changed, err := h.lifecycle.CompleteDocument(ctx, req)
		if err != nil {
			h.dedup.Forget(ctx, key)
			h.logger.Error("failed to complete document", withErr(fields, err))
			res.Outcome = OutcomeError
			return res
		}
		res.Outcome = outcome(changed)
		return res
	}

	out, err := h.lifecycle.RecordSignerCompleted(ctx, req, email)
	if err != nil {
		h.dedup.Forget(ctx, key)
		h.logger.Error("failed to record signer", withErr(fields, err))
		res.Outcome = OutcomeError
		return res
	}
	res.Role = string(out.Role)
	res.Outcome = outcome(out.Changed)
	return res
}

func isCompleted(status string) bool {
	return status == esign.StatusCompleted || status == "completed"
}

// completedEmail prefers the acting recipient and falls back to the single recipient
// flagged as completed.
func completedEmail(d EventData) string {
	if d.ActionBy != nil && strings.TrimSpace(d.ActionBy.Email) != "" {
		return d.ActionBy.Email
	}
	var found string
	for _, r := range d.Recipients {
		if !r.HasCompleted {
			continue
		}
		if found != "" {
			return ""
		}
		found = r.Email
	}
	return found
}

func deliveryKey(e Event, email string) string {
	return strings.Join([]string{e.Event, e.Data.ID, e.Data.Status, models.NormalizeEmail(email)}, "|")
}

func eventLabel(event string) string {
	switch event {
	case EventDocumentStateChanged, EventRecipientCompleted:
		return event
	}
	return "other"
}

func outcome(changed bool) string {
	if changed {
		return OutcomeProcessed
	}
	return OutcomeNoop
}

func withErr(fields map[string]interface{}, err error) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}
