package station

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Monitor polls the server's health endpoint and fires the onRegain callback
// on each offline→online transition. The callback typically drains the
// outbox and refreshes the snapshot.
type Monitor struct {
	client   *Client
	interval time.Duration
	log      *logrus.Entry
}

func NewMonitor(client *Client, interval time.Duration, log *logrus.Entry) *Monitor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Monitor{client: client, interval: interval, log: log}
}

func (m *Monitor) Run(ctx context.Context, onRegain func(context.Context)) error {
	online := false
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		err := m.client.Health(ctx)
		switch {
		case err == nil && !online:
			online = true
			m.log.Info("connectivity regained")
			onRegain(ctx)
		case err != nil && online:
			online = false
			m.log.Warn("connectivity lost")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
