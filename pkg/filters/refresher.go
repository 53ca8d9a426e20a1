package filters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Source fetches the current filter set for a venue.
type Source func(ctx context.Context) ([]SymbolFilter, error)

// RefreshObserver is notified after every refresh attempt.
type RefreshObserver func(venue string, symbols int, err error)

// Refresher keeps a Validator fresh on a fixed interval, independent of
// request traffic.
type Refresher struct {
	Validator *Validator
	Source    Source
	Interval  time.Duration
	Timeout   time.Duration
	Logger    *zap.Logger
	Observe   RefreshObserver
}

// Load performs one synchronous refresh. An empty result is treated as an
// error so a bad response cannot wipe a working cache.
func (r *Refresher) Load(ctx context.Context) error {
	if r.Validator == nil || r.Source == nil {
		return errors.New("filters: refresher not configured")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	sfs, err := r.Source(ctx)
	if err == nil && len(sfs) == 0 {
		err = errors.New("exchange returned no symbols")
	}
	if err != nil {
		err = fmt.Errorf("refresh %s filters: %w", r.Validator.Venue(), err)
		r.observe(0, err)
		return err
	}
	r.Validator.Replace(sfs)
	r.observe(len(sfs), nil)
	return nil
}

// Start loads once and returns the error so callers can refuse to start
// without rules, then refreshes in the background until ctx is done. Failed
// background refreshes keep the previous snapshot.
func (r *Refresher) Start(ctx context.Context) error {
	if err := r.Load(ctx); err != nil {
		return err
	}
	if r.Interval <= 0 {
		return nil
	}
	log := r.logger()
	go func() {
		ticker := time.NewTicker(r.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Load(ctx); err != nil {
					log.Warn("filter refresh failed, keeping previous snapshot", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

func (r *Refresher) observe(n int, err error) {
	if r.Observe != nil {
		r.Observe(r.Validator.Venue(), n, err)
	}
	if err == nil {
		r.logger().Info("filters loaded", zap.String("venue", r.Validator.Venue()), zap.Int("symbols", n))
	}
}

func (r *Refresher) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
