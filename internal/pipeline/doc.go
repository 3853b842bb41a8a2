// Package pipeline processes the critical URLs of one execution.
//
// Each critical URL runs through the same sequence of steps: load the
// previous snapshot, fetch the page, validate its links, detect URL deltas,
// detect a semantic delta, and write the new snapshot. A step receives the
// URLState accumulated by the steps before it and adds to it.
//
// Per-URL failures are data. A step that cannot do its work records what
// happened in the state (a broken link validation, a failed write) and lets
// the remaining steps decide whether they have anything to do.
//
// BatchProcessor runs one fresh Pipeline per URL on a bounded errgroup.
package pipeline
