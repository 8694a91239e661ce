package config

import (
	"os"
	"strings"
	"time"
)

// AllowNegativeAdjustment gates the adjustment override: when enabled, an ADJUSTMENT
// mutation that explicitly asks for it may remove more than the active lots hold.
//
// Set via env:
// - ALLOW_NEGATIVE_ADJUSTMENT=true
func AllowNegativeAdjustment() bool {
	return boolFromEnv("ALLOW_NEGATIVE_ADJUSTMENT", false)
}

// StrictLedgerInvariant makes every mutation verify stock == sum(active lot remaining)
// and abort on drift. On by default.
func StrictLedgerInvariant() bool {
	return boolFromEnv("STRICT_LEDGER_INVARIANT", true)
}

type NotifyTransport string

const (
	NotifyTransportNone   NotifyTransport = "none"
	NotifyTransportPubSub NotifyTransport = "pubsub"
	NotifyTransportKafka  NotifyTransport = "kafka"
)

// NotificationTransport selects the broker used for post-commit order notifications.
//
// Set via env:
// - NOTIFY_TRANSPORT=pubsub|kafka|none (default none)
func NotificationTransport() NotifyTransport {
	switch NotifyTransport(strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_TRANSPORT")))) {
	case NotifyTransportPubSub:
		return NotifyTransportPubSub
	case NotifyTransportKafka:
		return NotifyTransportKafka
	default:
		return NotifyTransportNone
	}
}

func NotifyWorkers() int {
	n := intFromEnv("NOTIFY_WORKERS", 4)
	if n <= 0 {
		return 1
	}
	return n
}

func NotifyQueueSize() int {
	n := intFromEnv("NOTIFY_QUEUE_SIZE", 256)
	if n <= 0 {
		return 1
	}
	return n
}

func PermissionCacheTTL() time.Duration {
	return time.Duration(intFromEnv("PERMISSION_CACHE_TTL_SECONDS", 300)) * time.Second
}
