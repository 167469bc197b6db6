// Package metrics provides a Redis-backed metrics collector shared by the
// cepbridge binaries. Each binary reports its counters under its own key so
// a deployment can watch the whole pipeline from one place.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for service metrics.
	KeyPrefix = "cep:metrics:"
	// TTL is how long metrics stay in Redis if not refreshed.
	TTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is the reported snapshot for one service.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	EventsReceived  uint64 `json:"events_received"`
	EventsProcessed uint64 `json:"events_processed"`
	AlertsPublished uint64 `json:"alerts_published"`
	Errors          uint64 `json:"errors"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Recorder is the counter surface the pipeline components use. The noop
// implementation keeps nil checks out of the hot path.
type Recorder interface {
	RecordReceived()
	RecordProcessed()
	RecordPublished()
	RecordError()
	IncrementCustom(name string)
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) RecordReceived()             {}
func (Noop) RecordProcessed()            {}
func (Noop) RecordPublished()            {}
func (Noop) RecordError()                {}
func (Noop) IncrementCustom(name string) {}

// Collector accumulates counters and periodically reports them to Redis.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	eventsReceived  atomic.Uint64
	eventsProcessed atomic.Uint64
	alertsPublished atomic.Uint64
	errors          atomic.Uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a collector for a service. redisClient may be nil, in
// which case counters accumulate but nothing is reported.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins periodic reporting. The report goroutine exits on Stop or ctx
// cancellation, writing one final snapshot either way.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.write(context.Background())
				return
			case <-c.stopCh:
				c.write(context.Background())
				return
			case <-ticker.C:
				c.write(ctx)
			}
		}
	}()
}

// Stop stops the reporting goroutine and waits for its final write.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

func (c *Collector) RecordReceived()  { c.eventsReceived.Add(1) }
func (c *Collector) RecordProcessed() { c.eventsProcessed.Add(1) }
func (c *Collector) RecordPublished() { c.alertsPublished.Add(1) }
func (c *Collector) RecordError()     { c.errors.Add(1) }

// IncrementCustom increments a named counter, creating it on first use.
func (c *Collector) IncrementCustom(name string) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(1)
}

// Snapshot returns the current counters without writing to Redis.
func (c *Collector) Snapshot() *ServiceMetrics {
	c.customMu.RLock()
	custom := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		custom[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:     c.serviceName,
		StartedAt:       c.startedAt,
		LastUpdated:     time.Now().UTC(),
		EventsReceived:  c.eventsReceived.Load(),
		EventsProcessed: c.eventsProcessed.Load(),
		AlertsPublished: c.alertsPublished.Load(),
		Errors:          c.errors.Load(),
		CustomCounters:  custom,
	}
}

func (c *Collector) write(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snapshot := c.Snapshot()
	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := KeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, TTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
	}
}

var _ Recorder = (*Collector)(nil)
var _ Recorder = Noop{}
