// Package main provides the entry point for the driftwatch CLI.
//
// driftwatch monitors web domains for structural and content drift. Each run
// of a scout checks its critical URLs, compares them with the previous run and
// raises severity-classified alerts.
//
// Usage:
//
//	driftwatch run <scout>
//	driftwatch run --all
//	driftwatch notify
//
// See --help for all available options.
package main

func main() {
	Execute()
}
