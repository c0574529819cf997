package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// shared across tests in one binary
	testSequence uint64

	baseTimestamp = time.Now().UnixNano()
)

func init() {
	// offset by the clock so reruns against the same database do not collide
	testSequence = uint64(baseTimestamp % 1000000)
}

// NextSequence returns next unique sequence number
func NextSequence() uint64 {
	return atomic.AddUint64(&testSequence, 1)
}

// UniqueName generates a unique name with given prefix. The result is a
// valid unquoted SQL identifier when prefix is one.
// Example: UniqueName("user_activity") -> "user_activity_123456"
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, NextSequence())
}

// UniqueUserID generates an opaque user id as supplied by the auth proxy
func UniqueUserID() string {
	return fmt.Sprintf("test-user-%d", NextSequence())
}

// UniqueQuery generates a distinct search query
func UniqueQuery(topic string) string {
	return fmt.Sprintf("%s trade with partner %d", topic, NextSequence())
}
