// Package model defines the core data structures used throughout driftwatch.
//
// This package contains the following main types:
//   - Scout: A configured monitoring target (domain, critical URLs, keywords)
//   - Execution: One run of a scout, with lifecycle status and counters
//   - LinkValidation: The reachability result of a single URL check
//   - PageSnapshot: The observed state of a page, used as the "previous" state of the next run
//   - URLDelta and SemanticDelta: Structural and content changes detected in a run
//   - Alert: A severity-classified, deduplicated issue raised by a run
//
// Design decision: Models live in their own package so that the store, the
// detectors, the alert dispatcher and the engine can share them without
// import cycles. All models serialize to JSON for reports.
package model
