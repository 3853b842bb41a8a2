// Package keyword extracts monitored keywords from page text.
//
// Matching is case- and accent-insensitive: "Envío" and "ENVIO" are the same
// keyword. Sensitive keywords followed by a value, such as a price or an email
// address, also yield a "keyword:value" token so that a changed value changes
// the extracted set.
package keyword
