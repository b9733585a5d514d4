// Package retry provides exponential backoff and retry logic for handling
// transient failures in network operations, particularly tile fetches.
//
// Features:
//   - Exponential and constant backoff strategies
//   - Optional jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Configurable retry predicates
//   - Integration with the pipeline's typed errors
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return client.Ping(ctx)
//	}, nil)
//
//	// The tile probe policy: delay doubles from 250ms up to a 5s cap,
//	// no jitter, retrying only transient failures
//	cfg := &retry.Config{
//		MaxAttempts: 8,
//		Backoff:     retry.NewProbeBackoff(250*time.Millisecond, 5*time.Second),
//		RetryIf:     retry.DefaultRetryIf,
//		Context:     ctx,
//		Logger:      logger.GetLogger(),
//	}
//	body, err := retry.DoWithResult(func() ([]byte, error) {
//		return client.FetchTile(ctx, coord)
//	}, cfg)
//
// Retry classification:
//
//   - Timeouts, connection errors, 429 and retryable 5xx: retried with backoff
//   - Other HTTP statuses: fail immediately
//   - Payload decode failures: fail immediately, never retried
//   - Context cancellation: stops the retry loop
package retry
