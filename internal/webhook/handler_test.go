package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hire-onboarding/internal/common/logger"
	"hire-onboarding/internal/models"
	"hire-onboarding/internal/onboarding"
	"hire-onboarding/internal/store/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docID = "doc-123"

var (
	nd = models.User{ID: 3, Email: "nd@tours.example", Role: models.RoleND, IsActive: true}
	hr = models.User{ID: 2, Email: "hr@tours.example", Role: models.RoleHR, IsActive: true}
)

type fixture struct {
	mem    *storetest.Memory
	router *gin.Engine
	id     int64
	redis  *miniredis.Miniredis
}

func newFixture(t *testing.T, key string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storetest.NewMemory()
	mem.AddUser(nd)
	mem.AddUser(hr)
	doc := docID
	id := mem.Put(models.OnboardingRequest{
		Status:        models.StatusOfferLetterSent,
		CreatedByNDID: nd.ID,
		AssignedHRID:  &hr.ID,
		Candidate:     models.CandidateFields{Email: "casey@example.com"},
		Signature:     models.SignatureProgress{DocumentID: &doc},
	})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.NewTestLogger(t)
	svc := onboarding.NewService(onboarding.Dependencies{Store: mem, Logger: log}, onboarding.Options{})
	h := NewHandler(svc, NewRedisDeduper(client, time.Hour, log), key, log)

	router := gin.New()
	h.RegisterRoutes(router)
	return &fixture{mem: mem, router: router, id: id, redis: mr}
}

func (f *fixture) post(t *testing.T, body, query string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/pandadoc"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func recipientCompleted(email string) string {
	return `{"event":"recipient_completed","data":{"id":"` + docID + `","status":"document.sent","action_by":{"email":"` + email + `"}}}`
}

func outcomes(t *testing.T, body map[string]interface{}) []string {
	t.Helper()
	raw, ok := body["results"].([]interface{})
	require.True(t, ok)
	var out []string
	for _, r := range raw {
		out = append(out, r.(map[string]interface{})["outcome"].(string))
	}
	return out
}

func TestWebhook_SigningSequenceCompletesRequest(t *testing.T) {
	f := newFixture(t, "")

	for _, email := range []string{"ND@tours.example", "hr@tours.example", "casey@example.com"} {
		code, body := f.post(t, recipientCompleted(email), "")
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, []string{OutcomeProcessed}, outcomes(t, body), email)
	}
	code, body := f.post(t, `[{"event":"document_state_changed","data":{"id":"`+docID+`","status":"document.completed"}}]`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{OutcomeProcessed}, outcomes(t, body))

	req, err := f.mem.GetRequest(context.Background(), f.id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusADPCompleted, req.Status)
	require.NotNil(t, req.Signature.NDInitialsCompletedAt)
	require.NotNil(t, req.Signature.HRSignatureCompletedAt)
	require.NotNil(t, req.Signature.CandidateSignatureCompletedAt)
	assert.False(t, req.Signature.HRSignatureCompletedAt.Before(*req.Signature.NDInitialsCompletedAt))
	assert.False(t, req.Signature.CandidateSignatureCompletedAt.Before(*req.Signature.HRSignatureCompletedAt))

	_, body = f.post(t, `{"event":"document_state_changed","data":{"id":"`+docID+`","status":"completed"}}`, "")
	assert.Equal(t, []string{OutcomeNoop}, outcomes(t, body), "completing a terminal request is a no-op")
}

func TestWebhook_DuplicateDeliveryKeepsFirstTimestamp(t *testing.T) {
	f := newFixture(t, "")

	_, body := f.post(t, recipientCompleted(nd.Email), "")
	assert.Equal(t, []string{OutcomeProcessed}, outcomes(t, body))
	first, _ := f.mem.GetRequest(context.Background(), f.id)

	_, body = f.post(t, recipientCompleted(nd.Email), "")
	assert.Equal(t, []string{OutcomeDuplicate}, outcomes(t, body))

	f.redis.FlushAll()
	_, body = f.post(t, recipientCompleted(nd.Email), "")
	assert.Equal(t, []string{OutcomeNoop}, outcomes(t, body), "conditional write still guards without redis")

	second, _ := f.mem.GetRequest(context.Background(), f.id)
	assert.Equal(t, first.Signature.NDInitialsCompletedAt, second.Signature.NDInitialsCompletedAt)
}

func TestWebhook_UnknownAndIgnoredEvents(t *testing.T) {
	f := newFixture(t, "")

	code, body := f.post(t, `{"event":"recipient_completed","data":{"id":"missing","action_by":{"email":"x@y.com"}}}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, OutcomeNotFound, body["status"])

	_, body = f.post(t, `[{"event":"document_updated","data":{"id":"`+docID+`"}},{"event":"document_state_changed","data":{"id":"`+docID+`","status":"document.viewed"}}]`, "")
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, []string{OutcomeIgnored, OutcomeIgnored}, outcomes(t, body))

	_, body = f.post(t, recipientCompleted("stranger@example.com"), "")
	assert.Equal(t, []string{OutcomeNoop}, outcomes(t, body))

	code, body = f.post(t, `not json`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "invalid_payload", body["status"])

	req, _ := f.mem.GetRequest(context.Background(), f.id)
	assert.Equal(t, models.StatusOfferLetterSent, req.Status)
}

func TestWebhook_Signature(t *testing.T) {
	f := newFixture(t, "shared-secret")
	payload := recipientCompleted(nd.Email)

	code, _ := f.post(t, payload, "?signature=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.post(t, payload, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := f.post(t, payload, "?signature="+Sign("shared-secret", []byte(payload)))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{OutcomeProcessed}, outcomes(t, body))
}

func TestCompletedEmail(t *testing.T) {
	tests := []struct {
		name string
		data EventData
		want string
	}{
		{"action_by", EventData{ActionBy: &Person{Email: "a@x.com"}}, "a@x.com"},
		{"single completed recipient", EventData{Recipients: []Recipient{
			{Email: "a@x.com"}, {Email: "b@x.com", HasCompleted: true},
		}}, "b@x.com"},
		{"ambiguous recipients", EventData{Recipients: []Recipient{
			{Email: "a@x.com", HasCompleted: true}, {Email: "b@x.com", HasCompleted: true},
		}}, ""},
		{"none", EventData{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, completedEmail(tt.data))
		})
	}
}

func TestRedisDeduper(t *testing.T) {
	client, mock := redismock.NewClientMock()
	d := NewRedisDeduper(client, time.Hour, logger.NewNoOpLogger())
	ctx := context.Background()

	mock.ExpectSetNX(dedupPrefix+"k1", 1, time.Hour).SetVal(true)
	assert.True(t, d.FirstDelivery(ctx, "k1"))

	mock.ExpectSetNX(dedupPrefix+"k1", 1, time.Hour).SetVal(false)
	assert.False(t, d.FirstDelivery(ctx, "k1"))

	mock.ExpectSetNX(dedupPrefix+"k2", 1, time.Hour).SetErr(errors.New("connection refused"))
	assert.True(t, d.FirstDelivery(ctx, "k2"), "redis errors fail open")

	mock.ExpectDel(dedupPrefix + "k1").SetVal(1)
	d.Forget(ctx, "k1")

	assert.NoError(t, mock.ExpectationsWereMet())

	var nilDeduper *RedisDeduper
	assert.True(t, nilDeduper.FirstDelivery(ctx, "k"))
}
