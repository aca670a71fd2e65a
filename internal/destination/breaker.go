// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package destination

import (
	"context"
	"io"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/vaultkeep/internal/logging"
	"github.com/tomtom215/vaultkeep/internal/metrics"
)

// probeTimeout bounds how long a FillInfo HEAD-style probe is allowed to
// take before the circuit breaker counts it as a failure.
const probeTimeout = 3 * time.Second

// WithCircuitBreaker wraps inner so that repeated destination failures
// open a circuit and fail fast instead of piling up blocked goroutines
// against a backend that is down. Metadata probes (FillInfo) are
// additionally rate limited, since a misconfigured scheduler re-checking
// the same object in a tight loop should not hammer a remote backend.
func WithCircuitBreaker(name string, inner Provider) Provider {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.StateToFloat("closed"))

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			fromStr, toStr := from.String(), to.String()
			logging.Logger().Warn().
				Str("destination", breakerName).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("destination circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(metrics.StateToFloat(toStr))
			metrics.CircuitBreakerTransitions.WithLabelValues(breakerName, fromStr, toStr).Inc()
		},
	})

	return &breakerProvider{
		name:    name,
		inner:   inner,
		cb:      cb,
		probeRL: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

type breakerProvider struct {
	name    string
	inner   Provider
	cb      *gobreaker.CircuitBreaker[any]
	probeRL *rate.Limiter
}

func (p *breakerProvider) OpenWrite(ctx context.Context, path string, expectedSize *int64, mime *string) (io.WriteCloser, error) {
	result, err := p.cb.Execute(func() (any, error) {
		return p.inner.OpenWrite(ctx, path, expectedSize, mime)
	})
	if err != nil {
		return nil, err
	}
	return result.(io.WriteCloser), nil
}

func (p *breakerProvider) OpenRead(ctx context.Context, path string) (SourceRead, error) {
	result, err := p.cb.Execute(func() (any, error) {
		return p.inner.OpenRead(ctx, path)
	})
	if err != nil {
		return SourceRead{}, err
	}
	return result.(SourceRead), nil
}

func (p *breakerProvider) Remove(ctx context.Context, path string) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.inner.Remove(ctx, path)
	})
	return err
}

func (p *breakerProvider) FillInfo(ctx context.Context, path string) (Info, error) {
	if err := p.probeRL.Wait(ctx); err != nil {
		return Info{}, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	result, err := p.cb.Execute(func() (any, error) {
		return p.inner.FillInfo(probeCtx, path)
	})
	if err != nil {
		return Info{}, err
	}
	return result.(Info), nil
}
