package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64
	bulkBatches     uint64
	bulkItems       uint64
	bulkFailed      uint64
	bulkNoops       uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordBulk counts one bulk batch and its per-item outcomes.
func (c *Collector) RecordBulk(items, failed, noops int) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.bulkBatches, 1)
	atomic.AddUint64(&c.bulkItems, uint64(max(items, 0)))
	atomic.AddUint64(&c.bulkFailed, uint64(max(failed, 0)))
	atomic.AddUint64(&c.bulkNoops, uint64(max(noops, 0)))
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"bulkBatchesTotal": atomic.LoadUint64(&c.bulkBatches),
		"bulkItemsTotal":   atomic.LoadUint64(&c.bulkItems),
		"bulkFailedTotal":  atomic.LoadUint64(&c.bulkFailed),
		"bulkNoopsTotal":   atomic.LoadUint64(&c.bulkNoops),
	}
}
