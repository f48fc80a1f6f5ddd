package server

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// telemetryCounters tracks hot-path counters without taking the hub lock.
// Named gauges (Add/Store) back the selection command buffer metrics.
type telemetryCounters struct {
	bytesSent             atomic.Uint64
	messagesSent          atomic.Uint64
	tickDurationMillis    atomic.Int64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastMessages atomic.Uint64
	debug                 bool

	mu     sync.Mutex
	gauges map[string]*atomic.Uint64
}

type telemetrySnapshot struct {
	BytesSent    uint64            `json:"bytesSent"`
	MessagesSent uint64            `json:"messagesSent"`
	TickDuration int64             `json:"tickDurationMillis"`
	Gauges       map[string]uint64 `json:"gauges"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{gauges: make(map[string]*atomic.Uint64)}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) gauge(key string) *atomic.Uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.gauges[key]
	if !ok {
		value = &atomic.Uint64{}
		t.gauges[key] = value
	}
	return value
}

// Add increments a named counter.
func (t *telemetryCounters) Add(key string, delta uint64) {
	t.gauge(key).Add(delta)
}

// Store overwrites a named gauge.
func (t *telemetryCounters) Store(key string, value uint64) {
	t.gauge(key).Store(value)
}

func (t *telemetryCounters) RecordBroadcast(bytes, messages int) {
	if bytes < 0 {
		bytes = 0
	}
	if messages < 0 {
		messages = 0
	}
	t.bytesSent.Add(uint64(bytes))
	t.messagesSent.Add(uint64(messages))
	t.lastBroadcastBytes.Store(uint64(bytes))
	t.lastBroadcastMessages.Store(uint64(messages))
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dms bytes=%d totalBytes=%d messages=%d totalMessages=%d\n",
			millis,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.lastBroadcastMessages.Load(),
			t.messagesSent.Load(),
		)
	}
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	t.mu.Lock()
	gauges := make(map[string]uint64, len(t.gauges))
	for key, value := range t.gauges {
		gauges[key] = value.Load()
	}
	t.mu.Unlock()

	return telemetrySnapshot{
		BytesSent:    t.bytesSent.Load(),
		MessagesSent: t.messagesSent.Load(),
		TickDuration: t.tickDurationMillis.Load(),
		Gauges:       gauges,
	}
}
