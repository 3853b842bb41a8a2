// Package alert turns detector output into alerts and delivers them.
//
// The Classifier assigns a severity to each finding, a Set merges findings
// so that one execution raises at most one alert per (url, type), and the
// Dispatcher persists alerts before handing them to a notifier.
package alert
