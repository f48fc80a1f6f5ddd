package selection

import "sync"

const (
	commandBufferOccupancyMetricKey = "selection_command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "selection_command_buffer_overflow_total"
)

// CommandBuffer stages commands between websocket readers and the tick
// loop. Pushes beyond the limit are rejected so a flooding client cannot
// grow the per-tick workload unboundedly. Safe for concurrent producers
// and a single draining consumer.
type CommandBuffer struct {
	mu      sync.Mutex
	pending []Command
	limit   int
	metrics telemetryMetrics
}

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

func NewCommandBuffer(limit int, metrics telemetryMetrics) *CommandBuffer {
	if limit < 1 {
		limit = 1
	}
	return &CommandBuffer{
		pending: make([]Command, 0, limit),
		limit:   limit,
		metrics: metrics,
	}
}

// Push stages a command, returning false if the buffer is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) >= b.limit {
		if b.metrics != nil {
			b.metrics.Add(commandBufferOverflowMetricKey, 1)
		}
		return false
	}
	b.pending = append(b.pending, cmd)
	return true
}

// Drain returns all staged commands in FIFO order and clears the buffer.
// The returned slice is a copy; producers may keep pushing into the
// retained backing array while the consumer iterates. The occupancy gauge
// records how full the buffer got each tick.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		if b.metrics != nil {
			b.metrics.Store(commandBufferOccupancyMetricKey, 0)
		}
		return nil
	}
	drained := make([]Command, len(b.pending))
	copy(drained, b.pending)
	for i := range b.pending {
		b.pending[i] = Command{}
	}
	b.pending = b.pending[:0]
	if b.metrics != nil {
		b.metrics.Store(commandBufferOccupancyMetricKey, uint64(len(drained)))
	}
	return drained
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
