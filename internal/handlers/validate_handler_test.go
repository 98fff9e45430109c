package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/farellandr/spoticket-checkin/internal/backoff"
	"github.com/farellandr/spoticket-checkin/internal/checkin"
	"github.com/farellandr/spoticket-checkin/internal/handlers"
	"github.com/farellandr/spoticket-checkin/internal/ledger"
	"github.com/farellandr/spoticket-checkin/internal/middleware"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

func newRouter(store ledger.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := checkin.NewService(store,
		backoff.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		2*time.Hour, logrus.NewEntry(log))

	r := gin.New()
	r.Use(middleware.CheckInMiddleware(svc))
	r.Use(func(c *gin.Context) {
		c.Set("station_id", "gate-T")
		c.Set("role", "operator")
	})
	r.POST("/v1/tickets/validate", handlers.ValidateTicket)
	r.POST("/v1/tickets/:id/verify", handlers.VerifyTicket)
	r.POST("/v1/tickets/:id/undo-checkin", handlers.UndoCheckIn)
	r.GET("/v1/events/:id/snapshot", handlers.EventSnapshot)
	return r
}

func seed(t *testing.T, store *ledger.MemoryStore) (*models.Event, *models.Ticket) {
	t.Helper()
	event := &models.Event{
		ID:        uuid.New(),
		Title:     "Test Event",
		Status:    models.EventStatusApproved,
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	}
	store.AddEvent(event)

	ticket := &models.Ticket{
		EventID:      event.ID,
		TierName:     "GA",
		OwnerID:      uuid.New(),
		AttendeeName: "Sam Reyes",
		PurchaseDate: time.Now(),
		State:        models.TicketStateValid,
	}
	if err := store.CreateTicket(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return event, ticket
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) *models.ScanResult {
	t.Helper()
	var result models.ScanResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v (body %s)", err, w.Body.String())
	}
	return &result
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()
	store := ledger.NewMemoryStore()
	event, ticket := seed(t, store)
	r := newRouter(store)

	w := postJSON(t, r, "/v1/tickets/validate", map[string]string{
		"ticket_id": ticket.ID.String(),
		"event_id":  event.ID.String(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", w.Code, w.Body.String())
	}
	result := decodeResult(t, w)
	if result.Outcome != models.OutcomeValid {
		t.Fatalf("outcome: got %s, want VALID", result.Outcome)
	}
	if result.Ticket.CheckInStationID == nil || *result.Ticket.CheckInStationID != "gate-T" {
		t.Errorf("station stamp: got %v, want gate-T", result.Ticket.CheckInStationID)
	}

	again := decodeResult(t, postJSON(t, r, "/v1/tickets/validate", map[string]string{
		"ticket_id": ticket.ID.String(),
		"event_id":  event.ID.String(),
	}))
	if again.Outcome != models.OutcomeAlreadyUsed {
		t.Fatalf("second outcome: got %s, want ALREADY_USED", again.Outcome)
	}
}

func TestValidateEndpointUnrecognizedStringIsNotFound(t *testing.T) {
	t.Parallel()
	store := ledger.NewMemoryStore()
	event, _ := seed(t, store)
	r := newRouter(store)

	w := postJSON(t, r, "/v1/tickets/validate", map[string]string{
		"ticket_id": "not-even-a-uuid",
		"event_id":  event.ID.String(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if result := decodeResult(t, w); result.Outcome != models.OutcomeNotFound {
		t.Fatalf("outcome: got %s, want NOT_FOUND", result.Outcome)
	}
}

func TestVerifyEndpointReplay(t *testing.T) {
	t.Parallel()
	store := ledger.NewMemoryStore()
	event, ticket := seed(t, store)
	r := newRouter(store)

	requestID := uuid.New().String()
	path := fmt.Sprintf("/v1/tickets/%s/verify", ticket.ID)
	body := map[string]string{"request_id": requestID, "event_id": event.ID.String()}

	first := decodeResult(t, postJSON(t, r, path, body))
	if first.Outcome != models.OutcomeValid {
		t.Fatalf("first outcome: got %s, want VALID", first.Outcome)
	}

	second := decodeResult(t, postJSON(t, r, path, body))
	if second.Outcome != models.OutcomeValid {
		t.Fatalf("replay outcome: got %s, want VALID", second.Outcome)
	}
	if !second.Ticket.CheckInTime.Equal(*first.Ticket.CheckInTime) {
		t.Error("replay must not advance the check-in time")
	}
}

func TestUndoCheckInEndpoint(t *testing.T) {
	t.Parallel()
	store := ledger.NewMemoryStore()
	event, ticket := seed(t, store)
	r := newRouter(store)

	w := postJSON(t, r, fmt.Sprintf("/v1/tickets/%s/undo-checkin", ticket.ID), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("undo before check-in: got %d, want 409", w.Code)
	}

	postJSON(t, r, "/v1/tickets/validate", map[string]string{
		"ticket_id": ticket.ID.String(),
		"event_id":  event.ID.String(),
	})

	w = postJSON(t, r, fmt.Sprintf("/v1/tickets/%s/undo-checkin", ticket.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("undo: got %d, want 200 (body %s)", w.Code, w.Body.String())
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	t.Parallel()
	store := ledger.NewMemoryStore()
	event, ticket := seed(t, store)
	r := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/events/%s/snapshot", event.ID), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var snap checkin.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.TicketIDs) != 1 || snap.TicketIDs[0] != ticket.ID {
		t.Fatalf("ticket ids: got %v, want [%s]", snap.TicketIDs, ticket.ID)
	}
	if snap.GeneratedAt.IsZero() {
		t.Error("snapshot must carry its generation time")
	}
}
