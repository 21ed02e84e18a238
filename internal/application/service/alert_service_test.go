package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tickalert/internal/application/port"
)

type fakeNotifier struct {
	calls []port.Alert
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, a port.Alert) error {
	f.calls = append(f.calls, a)
	return f.err
}

func tick(id string, price float64) port.Tick {
	return port.Tick{SecurityID: id, PriceNum: price, Ts: time.Now().UnixMilli()}
}

func TestThrottleSuppressesWithinInterval(t *testing.T) {
	fn := &fakeNotifier{}
	svc := NewAlertService(fn, time.Minute)

	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		svc.MaybeNotify(ctx, tick("1333", 1725.4), "HDFC BANK")
		now = now.Add(5 * time.Second)
	}
	if len(fn.calls) != 1 {
		t.Fatalf("deliveries within interval = %d, want 1", len(fn.calls))
	}

	// 65s after the first send the next tick is eligible again.
	now = time.Unix(1_700_000_000, 0).Add(65 * time.Second)
	svc.MaybeNotify(ctx, tick("1333", 1730.0), "HDFC BANK")
	if len(fn.calls) != 2 {
		t.Fatalf("deliveries after interval = %d, want 2", len(fn.calls))
	}
}

func TestFailedDeliveryDoesNotAdvanceThrottle(t *testing.T) {
	fn := &fakeNotifier{err: errors.New("telegram api status 502")}
	svc := NewAlertService(fn, time.Minute)

	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	svc.MaybeNotify(ctx, tick("1333", 1725.4), "HDFC BANK")
	if len(fn.calls) != 1 {
		t.Fatalf("attempts = %d, want 1", len(fn.calls))
	}

	// Delivery recovers; the very next tick must still be eligible even
	// though it arrives well inside the interval.
	fn.err = nil
	now = now.Add(2 * time.Second)
	svc.MaybeNotify(ctx, tick("1333", 1726.0), "HDFC BANK")
	if len(fn.calls) != 2 {
		t.Fatalf("attempts after recovery = %d, want 2", len(fn.calls))
	}

	// And the successful send is the one that arms the throttle.
	now = now.Add(2 * time.Second)
	svc.MaybeNotify(ctx, tick("1333", 1727.0), "HDFC BANK")
	if len(fn.calls) != 2 {
		t.Fatalf("attempts while throttled = %d, want 2", len(fn.calls))
	}
}

func TestThrottleIsPerSecurity(t *testing.T) {
	fn := &fakeNotifier{}
	svc := NewAlertService(fn, time.Minute)

	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now }

	ctx := context.Background()
	svc.MaybeNotify(ctx, tick("1333", 1725.4), "HDFC BANK")
	svc.MaybeNotify(ctx, tick("4963", 950.0), "Security 4963")
	if len(fn.calls) != 2 {
		t.Fatalf("deliveries for distinct securities = %d, want 2", len(fn.calls))
	}
}

func TestAlertCarriesTickValues(t *testing.T) {
	fn := &fakeNotifier{}
	svc := NewAlertService(fn, time.Minute)

	now := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return now }

	in := port.Tick{SecurityID: "1333", PriceStr: "1725.40", PriceNum: 1725.4}
	svc.MaybeNotify(context.Background(), in, "HDFC BANK")

	if len(fn.calls) != 1 {
		t.Fatal("no delivery")
	}
	a := fn.calls[0]
	if a.SecurityID != "1333" || a.DisplayName != "HDFC BANK" || a.PriceStr != "1725.40" {
		t.Errorf("alert = %+v, want tick values carried through", a)
	}
	if !a.At.Equal(now) {
		t.Errorf("alert time = %v, want %v", a.At, now)
	}
}
