package redis

import "strings"

const keyNamespace = "sf"

// Keyspace lays out every key under the "sf:" namespace. Blank segments are dropped.
type Keyspace struct{}

func (Keyspace) IdempotencyKey(scope, id string) string { return join("idempotency", scope, id) }

func (Keyspace) RateLimitKey(scope string) string { return join("rate_limit", scope) }

// CartKey holds the serialized cart of a session.
func (Keyspace) CartKey(sessionKey string) string { return join("cart", sessionKey) }

// AuthKey holds the bearer token bound to a session.
func (Keyspace) AuthKey(sessionKey string) string { return join("auth", sessionKey) }

// EventChannel is the pub/sub channel carrying outbox events of one type.
func (Keyspace) EventChannel(eventType string) string { return join("events", eventType) }

func join(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
