// Package engine runs executions of scouts.
//
// RunExecution opens an execution record, processes every critical URL of
// the scout through the pipeline package, dispatches the deduplicated
// alerts, and closes the record as completed or failed with its counters.
//
// A run that completes may still carry broken links and critical alerts:
// completed means the engine did its job, not that the domain is healthy.
// Only systemic failures fail a run (an invalid scout, a content fetcher
// that is down for every URL, a store that rejects every write). Only the
// inability to create or close the execution record is returned as an error.
//
// The engine does not prevent concurrent runs of the same scout; see the
// runlock package for the caller side of that.
package engine
