// Package analyzer asks a language model to describe how a page changed.
//
// The answer is informational: it is stored next to the semantic delta for
// humans to read and never decides the impact of a change.
package analyzer
