// Package idgen generates identifiers for sessions, requests and journal
// rows.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 v7 UUIDs. They sort by creation
// time, which keeps journal rows in insertion order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID, e.g. "ses_" or "evt_".
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default generates the ids of sessions, requests and journal rows.
var Default Generator = UUIDv7()
