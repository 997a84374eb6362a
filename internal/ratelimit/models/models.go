package models

import (
	"strings"
	"time"
)

// Scope says what a limit is counted against.
type Scope string

const (
	ScopeUser Scope = "user"
	ScopeIP   Scope = "ip"
)

// Limit is a request budget over a sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one check against a bucket.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is set when the request was denied.
	RetryAfter time.Duration
}

// NewKey builds the bucket key for an action, e.g. "rl:member_write:user:u-42".
func NewKey(action string, scope Scope, id string) string {
	return strings.Join([]string{"rl", action, string(scope), id}, ":")
}
