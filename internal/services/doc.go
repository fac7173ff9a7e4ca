// Package services defines shared utilities consumed by the orchestrator and
// the external integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that classify failures
//     into the taxonomy the job orchestrator reports (input, acquisition,
//     matching, retrieval, rate limit, timeout, configuration).
//   - Context helpers that stamp job identifiers and pipeline stages for
//     logging.
//   - A retry policy abstraction shared by the rate-limited video-data
//     client and the authenticated download path.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
