package prober

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"tilecov/pkg/config"
	errs "tilecov/pkg/errors"
	"tilecov/pkg/logger"
	"tilecov/pkg/metrics"
	"tilecov/pkg/models"
	"tilecov/pkg/ratelimit"
	"tilecov/pkg/retry"
	"tilecov/pkg/tiles"
)

// TileFetcher fetches the raw vector tile body for a coordinate
type TileFetcher interface {
	FetchTile(ctx context.Context, coord tiles.Coord) ([]byte, error)
}

// CoverageDecoder counts coverage features in a tile payload
type CoverageDecoder interface {
	FeatureCount(data []byte) (int, error)
}

// Prober probes single tiles for coverage. Every request, including
// each retry, takes a rate limiter slot. Transient failures retry
// with backoff; decode failures and other terminal errors do not.
// Probe always returns an Outcome, never an error.
type Prober struct {
	fetcher TileFetcher
	decoder CoverageDecoder
	pacer   ratelimit.Limiter
	retry   config.RetryConfig
	logger  logger.Logger
}

// NewProber creates a prober over the given fetcher and decoder
func NewProber(fetcher TileFetcher, decoder CoverageDecoder, pacer ratelimit.Limiter, retryCfg config.RetryConfig, log logger.Logger) *Prober {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Prober{
		fetcher: fetcher,
		decoder: decoder,
		pacer:   pacer,
		retry:   retryCfg,
		logger:  log,
	}
}

// Probe checks one tile for coverage. Every call produces exactly one
// Outcome; errors end up on the Outcome, not as a return value.
func (p *Prober) Probe(ctx context.Context, coord tiles.Coord) models.Outcome {
	start := time.Now()
	attempts := 0
	lastStatus := 0

	features, err := retry.DoWithResult(func() (int, error) {
		attempts++

		waitStart := time.Now()
		if err := p.pacer.Wait(ctx); err != nil {
			return 0, err
		}
		metrics.RateWaitDuration.Observe(time.Since(waitStart).Seconds())

		reqStart := time.Now()
		data, err := p.fetcher.FetchTile(ctx, coord)
		reqElapsed := time.Since(reqStart)

		if err != nil {
			lastStatus = statusCodeOf(err)
			metrics.ObserveRequest(lastStatus, reqElapsed)
			return 0, err
		}
		lastStatus = http.StatusOK
		metrics.ObserveRequest(http.StatusOK, reqElapsed)

		count, err := p.decoder.FeatureCount(data)
		if err != nil {
			return 0, err
		}
		return count, nil
	}, &retry.Config{
		MaxAttempts: p.retry.MaxAttempts,
		Backoff:     retry.NewProbeBackoff(p.retry.BackoffBase, p.retry.BackoffCap),
		RetryIf:     retry.DefaultRetryIf,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			metrics.RetriesTotal.Inc()
		},
		Context: ctx,
		Logger:  p.logger,
	})

	elapsed := time.Since(start)

	if err != nil {
		p.logger.WarnWithFields("tile probe failed", map[string]interface{}{
			"tile":     coord.String(),
			"attempts": attempts,
			"status":   lastStatus,
			"error":    err.Error(),
		})
		metrics.ObserveOutcome(metrics.OutcomeFailed)
		return models.Outcome{
			Coord:      coord,
			Status:     models.StatusError,
			HTTPStatus: lastStatus,
			Detail:     err.Error(),
			Attempts:   attempts,
			Elapsed:    elapsed,
		}
	}

	covered := features > 0
	if covered {
		metrics.ObserveOutcome(metrics.OutcomeCovered)
	} else {
		metrics.ObserveOutcome(metrics.OutcomeUncovered)
	}

	p.logger.DebugWithFields("tile probed", map[string]interface{}{
		"tile":     coord.String(),
		"covered":  covered,
		"features": features,
		"attempts": attempts,
		"elapsed":  elapsed,
	})

	return models.Outcome{
		Coord:      coord,
		Covered:    covered,
		Features:   features,
		Status:     models.StatusOK,
		HTTPStatus: http.StatusOK,
		Attempts:   attempts,
		Elapsed:    elapsed,
	}
}

// statusCodeOf extracts the HTTP status carried by a typed error.
// Transport failures without a response report zero.
func statusCodeOf(err error) int {
	var e *errs.Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}
