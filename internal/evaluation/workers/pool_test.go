package workers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name            string
		numWorkers      int
		expectedWorkers int
	}{
		{"positive workers", 5, 5},
		{"zero workers defaults to 1", 0, 1},
		{"negative workers defaults to 1", -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.numWorkers)
			assert.Equal(t, tt.expectedWorkers, pool.Size())
		})
	}
}

func TestStream_Empty(t *testing.T) {
	pool := NewWorkerPool(2)

	count := 0
	for range Stream(pool, []int(nil), func(i int) int { return i }) {
		count++
	}
	assert.Zero(t, count)
}

func TestStream_DeliversEveryResultOnce(t *testing.T) {
	pool := NewWorkerPool(3)
	jobs := []string{"BTC", "ETH", "XRP", "LTC", "ADA"}

	seen := make(map[string]int)
	for r := range Stream(pool, jobs, func(s string) string { return s }) {
		seen[r]++
	}

	require.Len(t, seen, len(jobs))
	for _, job := range jobs {
		assert.Equal(t, 1, seen[job], "job %s should be delivered exactly once", job)
	}
}

func TestStream_CompletionOrder(t *testing.T) {
	pool := NewWorkerPool(2)

	// The slow job is submitted first but finishes last
	jobs := []time.Duration{200 * time.Millisecond, 0}

	var order []time.Duration
	for r := range Stream(pool, jobs, func(d time.Duration) time.Duration {
		time.Sleep(d)
		return d
	}) {
		order = append(order, r)
	}

	assert.Equal(t, []time.Duration{0, 200 * time.Millisecond}, order)
}

func TestStream_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2)
	jobs := make([]int, 10)

	var running, peak int32
	for range Stream(pool, jobs, func(int) int {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return 0
	}) {
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
