// Package delta compares the current observation of a page with its latest
// snapshot. DetectURLDeltas reports links that appeared or disappeared and
// DetectSemanticDelta decides whether the content changed in a way that matters.
package delta
