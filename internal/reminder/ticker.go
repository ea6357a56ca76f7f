package reminder

import (
	"context"
	"time"

	"booklend/internal/logging"
)

// Ticker runs the service on a fixed interval. It implements suture.Service.
type Ticker struct {
	svc      *Service
	interval time.Duration
}

func NewTicker(svc *Service, interval time.Duration) *Ticker {
	return &Ticker{svc: svc, interval: interval}
}

func (t *Ticker) Serve(ctx context.Context) error {
	log := logging.WithComponent("reminder")
	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			if _, err := t.svc.Run(ctx, now); err != nil {
				log.Error().Err(err).Msg("scheduled reminder run failed")
			}
		}
	}
}

func (t *Ticker) String() string { return "reminder-ticker" }
