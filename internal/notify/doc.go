// Package notify delivers alerts to people.
//
// A Notifier returns a delivery id when the channel accepted the alert. Only
// then is the alert marked as notified; failed deliveries stay pending and
// are retried by a later sweep.
package notify
