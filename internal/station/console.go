package station

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Control is the slice of the machine the console drives. *Machine satisfies
// it.
type Control interface {
	Dismiss()
	Reset()
}

// ConsoleSource reads operator input line by line. A plain line is a scan
// candidate; lines starting with "/" are station commands:
//
//	/dismiss                    acknowledge the displayed result
//	/reset                      manual station reset
//	/override <ticket-id> [note]  record a manual override for reconciliation
type ConsoleSource struct {
	R       io.Reader
	Control Control
	Offline *OfflineValidator
	EventID string
	Log     *logrus.Entry
}

func (s *ConsoleSource) Run(ctx context.Context, p *Pipeline) error {
	log := s.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	scanner := bufio.NewScanner(s.R)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "/") {
			p.Publish(line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/dismiss":
			s.Control.Dismiss()
		case "/reset":
			s.Control.Reset()
		case "/override":
			if len(fields) < 2 {
				log.Warn("usage: /override <ticket-id> [note]")
				continue
			}
			note := strings.Join(fields[2:], " ")
			if _, err := s.Offline.RecordOverride(fields[1], s.EventID, note); err != nil {
				log.WithError(err).Error("failed to record override")
				continue
			}
			log.WithField("ticket_id", fields[1]).Info("override recorded for reconciliation")
		default:
			log.WithField("command", fields[0]).Warn("unknown command")
		}
	}
	return scanner.Err()
}
