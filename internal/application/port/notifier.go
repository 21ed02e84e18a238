package port

import (
	"context"
	"time"
)

// Alert is one price notification to be delivered.
type Alert struct {
	SecurityID  string
	DisplayName string
	PriceStr    string
	PriceNum    float64
	At          time.Time
}

// Notifier delivers an alert to an external channel. Returns an error if
// delivery fails; callers decide whether that is fatal.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}
