package port

import "context"

// Tick is one normalized last-traded-price observation.
type Tick struct {
	SecurityID string  // broker security id, e.g. "1333"
	PriceStr   string  // raw string as received
	PriceNum   float64 // parsed float64
	Ts         int64   // unix ms
}

// Dialer establishes feed sessions. One implementation per broker SDK.
type Dialer interface {
	Name() string
	Dial(ctx context.Context) (Session, error)
}

// Session is a live connection to the feed. Run blocks until the stream
// ends, handing every raw frame to onMessage. Returning at all (error or
// nil) means the stream is over; the caller decides whether to redial.
type Session interface {
	Run(ctx context.Context, onMessage func(raw []byte)) error
	Close() error
}
