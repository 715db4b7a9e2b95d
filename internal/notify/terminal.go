package notify

import (
	"github.com/fatih/color"

	"cryptopaper/internal/models"
)

// TerminalNotifier prints notifications to the terminal with level colors.
type TerminalNotifier struct{}

// NewTerminalNotifier creates a terminal notifier.
func NewTerminalNotifier() *TerminalNotifier {
	return &TerminalNotifier{}
}

// Notify prints the notification.
func (t *TerminalNotifier) Notify(n models.Notification) error {
	ts := n.Timestamp.Format("15:04:05")
	switch n.Level {
	case models.LevelSuccess:
		color.Green("[%s] ✓ %s", ts, n.Message)
	case models.LevelWarning:
		color.Yellow("[%s] ⚠ %s", ts, n.Message)
	case models.LevelError:
		color.Red("[%s] ✗ %s", ts, n.Message)
	default:
		color.Cyan("[%s] %s", ts, n.Message)
	}
	return nil
}

var _ Notifier = (*TerminalNotifier)(nil)
