// Package idempotency issues keys for mutating backend requests.
//
// A key identifies one logical user action. Every user-initiated attempt
// gets a fresh key; keys are never carried over to a later attempt.
package idempotency

import "github.com/google/uuid"

// Header is the request header the key travels in.
const Header = "Idempotency-Key"

// Generator issues idempotency keys.
type Generator interface {
	Next() string
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

// Next returns a new random key.
func (UUIDGenerator) Next() string {
	return uuid.NewString()
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() string

func (f GeneratorFunc) Next() string { return f() }
