package station

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

type State string

const (
	StateScanning   State = "scanning"
	StateValidating State = "validating"
	StateResult     State = "result_displayed"
)

// Validator is the online path; *Client satisfies it.
type Validator interface {
	Validate(ctx context.Context, ticketID, eventID string) (*models.ScanResult, error)
}

// Machine is the station's cooperative control loop: scanning → validating →
// result displayed → scanning, for the length of an operating session. It
// never has more than one validation outstanding; decode events arriving
// while it is busy are dropped by the paused pipeline.
type Machine struct {
	pipeline *Pipeline
	online   Validator
	offline  *OfflineValidator
	feedback Renderer
	eventID  string

	dismissAfter time.Duration
	dismiss      chan struct{}
	reset        chan struct{}
	refresh      chan struct{}

	mu    sync.Mutex
	state State

	log *logrus.Entry
}

func NewMachine(pipeline *Pipeline, online Validator, offline *OfflineValidator, feedback Renderer, eventID string, dismissAfter time.Duration, log *logrus.Entry) *Machine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Machine{
		pipeline:     pipeline,
		online:       online,
		offline:      offline,
		feedback:     feedback,
		eventID:      eventID,
		dismissAfter: dismissAfter,
		dismiss:      make(chan struct{}, 1),
		reset:        make(chan struct{}, 1),
		refresh:      make(chan struct{}, 1),
		log:          log,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Dismiss acknowledges a displayed result and returns the machine to
// scanning without waiting out the auto-dismiss timeout.
func (m *Machine) Dismiss() {
	select {
	case m.dismiss <- struct{}{}:
	default:
	}
}

// Reset is the manual station reset. A validation in flight is allowed to
// complete; its result is discarded locally and never silently retried.
func (m *Machine) Reset() {
	select {
	case m.reset <- struct{}{}:
	default:
	}
}

// RefreshRequests signals after each authoritative outcome, so the owner can
// opportunistically refresh the offline snapshot while connectivity is known
// good. Signals are best-effort and coalesce.
func (m *Machine) RefreshRequests() <-chan struct{} {
	return m.refresh
}

// Run drives the loop until the context is cancelled. There is no terminal
// state; cancellation is the only exit.
func (m *Machine) Run(ctx context.Context) error {
	for {
		m.setState(StateScanning)
		m.pipeline.Resume()

		id, err := m.pipeline.Next(ctx)
		if err != nil {
			return err
		}
		m.pipeline.Pause()
		m.setState(StateValidating)

		resultCh := make(chan *models.ScanResult, 1)
		go func() {
			resultCh <- m.validate(ctx, id)
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.reset:
			// Let the in-flight call finish in the background and drop
			// whatever it returns.
			m.log.WithField("ticket_id", id).Warn("station reset, discarding in-flight result")
			go func() { <-resultCh }()
			continue
		case result := <-resultCh:
			m.display(ctx, result)
		}
	}
}

// validate tries the ledger first; a failure to reach it routes to the
// offline path rather than becoming a ticket verdict.
func (m *Machine) validate(ctx context.Context, ticketID string) *models.ScanResult {
	result, err := m.online.Validate(ctx, ticketID, m.eventID)
	if err == nil {
		select {
		case m.refresh <- struct{}{}:
		default:
		}
		return result
	}

	if !IsUnreachable(err) {
		// The server was reachable and rejected the call (expired token,
		// malformed request). Running the offline path here would hand out
		// provisional accepts on a healthy connection, so the error is
		// surfaced as a non-verdict instead and nothing is queued.
		m.log.WithField("ticket_id", ticketID).WithError(err).Error("validate call rejected")
		return &models.ScanResult{
			Outcome: models.OutcomeOfflineUnknown,
			Message: fmt.Sprintf("Validation rejected, check station configuration: %v", err),
		}
	}

	m.log.WithField("ticket_id", ticketID).Info("ledger unreachable, using offline path")

	offline, offErr := m.offline.Validate(ticketID, m.eventID)
	if offErr != nil {
		m.log.WithError(offErr).Error("offline validation failed")
		return &models.ScanResult{
			Outcome: models.OutcomeOfflineUnknown,
			Message: "Cannot confirm this ticket. Use manual override.",
		}
	}
	return offline
}

func (m *Machine) display(ctx context.Context, result *models.ScanResult) {
	m.setState(StateResult)
	m.feedback.Show(result)
	defer m.feedback.Clear()

	timer := time.NewTimer(m.dismissAfter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-m.dismiss:
	case <-m.reset:
	}
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
