// Package retry provides backoff and retry logic for handling transient
// failures when talking to the external scraping and generation services.
//
// Features:
//   - Exponential backoff with jitter for submission retries
//   - Fixed backoff for the job status poll loop
//   - Context support for cancellation
//   - Configurable retry predicates driven by typed error retryability
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return client.Submit(ctx, query)
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(operation, cfg)
package retry
