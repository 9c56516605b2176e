// Package retry provides the backoff policy used when a request to the
// security-analytics API times out.
//
// The connector uses a fixed exponential policy: the delay after attempt k
// is 2^k seconds, with no jitter and no upper bound:
//
//	backoff := retry.DefaultExponentialBackoff()
//	backoff.NextDelay(1) // 2s
//	backoff.NextDelay(2) // 4s
//	backoff.NextDelay(3) // 8s
//
// Waiting goes through a Sleeper so callers can observe delays in tests
// instead of sleeping. Wait is the real implementation and returns early
// when the context is cancelled.
package retry
