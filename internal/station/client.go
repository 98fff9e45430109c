package station

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/farellandr/spoticket-checkin/internal/checkin"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

// ErrUnreachable marks a failure to reach the validation server: connection
// errors, timeouts, or 5xx responses. It routes the station to the offline
// path and is never rendered as a ticket verdict.
var ErrUnreachable = errors.New("validation server unreachable")

// IsUnreachable reports whether err means the ledger could not be reached.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// Client talks to the validation server's station API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Validate(ctx context.Context, ticketID, eventID string) (*models.ScanResult, error) {
	body := map[string]string{"ticket_id": ticketID, "event_id": eventID}
	var result models.ScanResult
	if err := c.post(ctx, "/v1/tickets/validate", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Verify calls the idempotent entry point. requestID is the outbox entry id;
// replaying it after a dropped response returns the recorded outcome.
func (c *Client) Verify(ctx context.Context, requestID, ticketID, eventID string) (*models.ScanResult, error) {
	body := map[string]string{"request_id": requestID, "event_id": eventID}
	var result models.ScanResult
	path := fmt.Sprintf("/v1/tickets/%s/verify", ticketID)
	if err := c.post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Snapshot(ctx context.Context, eventID string) (*checkin.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+fmt.Sprintf("/v1/events/%s/snapshot", eventID), nil)
	if err != nil {
		return nil, err
	}
	var snap checkin.Snapshot
	if err := c.do(req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ReportConflict files a reconciliation alert with the operator view.
func (c *Client) ReportConflict(ctx context.Context, entry OutboxEntry, message string) error {
	body := map[string]interface{}{
		"ticket_id":   entry.TicketID,
		"event_id":    entry.EventID,
		"station_id":  entry.StationID,
		"message":     message,
		"reported_at": entry.ClientTimestamp,
	}
	return c.post(ctx, "/v1/alerts", body, nil)
}

func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: server returned %d", ErrUnreachable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("server rejected request (%d): %s", resp.StatusCode, body.Message)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
