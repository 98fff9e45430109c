package station

import (
	"fmt"
	"io"

	"github.com/farellandr/spoticket-checkin/internal/models"
)

// Renderer presents a scan outcome to gate staff. Implementations must make
// success, failure and degraded-mode verdicts unmistakably distinct; a
// provisional accept may never look like an authoritative VALID.
type Renderer interface {
	Show(result *models.ScanResult)
	Clear()
}

// TerminalRenderer renders outcomes on a terminal with distinct glyphs and
// bell patterns standing in for the gate hardware's lamp and buzzer: one
// bell for success, two for rejection, none for degraded-mode verdicts.
type TerminalRenderer struct {
	W io.Writer
}

func (r *TerminalRenderer) Show(result *models.ScanResult) {
	var glyph, bell string
	switch result.Outcome {
	case models.OutcomeValid:
		glyph, bell = "✔ VALID", "\a"
	case models.OutcomeAlreadyUsed:
		glyph, bell = "✘ ALREADY USED", "\a\a"
	case models.OutcomeEventMismatch:
		glyph, bell = "✘ WRONG EVENT", "\a\a"
	case models.OutcomeNotFound:
		glyph, bell = "✘ NOT FOUND", "\a\a"
	case models.OutcomeOfflineProvisional:
		glyph = "◪ PROVISIONAL (offline)"
	case models.OutcomeOfflineUnknown:
		glyph = "? UNCONFIRMED (offline)"
	}

	flag := ""
	if result.Flagged {
		flag = " [outside event window]"
	}
	fmt.Fprintf(r.W, "%s%s%s  %s\n", bell, glyph, flag, result.Message)

	if result.Ticket != nil && result.Ticket.CheckInTime != nil {
		fmt.Fprintf(r.W, "  checked in %s by station %s\n",
			result.Ticket.CheckInTime.Format("15:04:05"), deref(result.Ticket.CheckInStationID))
	}
}

func (r *TerminalRenderer) Clear() {
	fmt.Fprintln(r.W, "-- ready to scan --")
}

func deref(s *string) string {
	if s == nil {
		return "?"
	}
	return *s
}
