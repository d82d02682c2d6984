// internal/metrics/collector.go
// Package metrics aggregates request outcomes for the health command and
// the web server's health endpoint.
package metrics

import (
	"runtime"
	"sync"
	"time"
)

// responseTimeWindow bounds how many recent response times feed the average.
const responseTimeWindow = 100

// Collector accumulates request counts, response times, and error
// categories. All methods are safe for concurrent use.
type Collector struct {
	mu sync.Mutex

	startTime          time.Time
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	responseTimes      []time.Duration
	errorCounts        map[string]int64
}

var (
	instance *Collector
	once     sync.Once
)

// GetInstance returns the process-wide collector.
func GetInstance() *Collector {
	once.Do(func() {
		instance = NewCollector()
	})
	return instance
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		startTime:   time.Now(),
		errorCounts: make(map[string]int64),
	}
}

// RecordRequest records one request outcome. errCategory labels the error
// kind for failed requests and is ignored for successes.
func (c *Collector) RecordRequest(success bool, responseTime time.Duration, errCategory string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	if success {
		c.successfulRequests++
	} else {
		c.failedRequests++
		if errCategory != "" {
			c.errorCounts[errCategory]++
		}
	}

	c.responseTimes = append(c.responseTimes, responseTime)
	if len(c.responseTimes) > responseTimeWindow {
		c.responseTimes = c.responseTimes[len(c.responseTimes)-responseTimeWindow:]
	}

	observeRequest(success, responseTime, errCategory)
}

// Snapshot is a read-only view of collected metrics.
type Snapshot struct {
	Status              string           `json:"status"`
	UptimeSeconds       float64          `json:"uptime_seconds"`
	TotalRequests       int64            `json:"total_requests"`
	SuccessfulRequests  int64            `json:"successful_requests"`
	FailedRequests      int64            `json:"failed_requests"`
	SuccessRate         float64          `json:"success_rate"`
	AverageResponseSecs float64          `json:"average_response_time"`
	MemoryUsageMB       float64          `json:"memory_usage_mb"`
	Goroutines          int              `json:"goroutines"`
	ErrorCounts         map[string]int64 `json:"error_counts"`
}

// HealthSnapshot computes the current health view. Success rate below 90%
// degrades the status; below 70% it is unhealthy.
func (c *Collector) HealthSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	successRate := 100.0
	if c.totalRequests > 0 {
		successRate = float64(c.successfulRequests) / float64(c.totalRequests) * 100
	}

	var avg float64
	if len(c.responseTimes) > 0 {
		var total time.Duration
		for _, d := range c.responseTimes {
			total += d
		}
		avg = (total / time.Duration(len(c.responseTimes))).Seconds()
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := "healthy"
	if successRate < 90 {
		status = "degraded"
	}
	if successRate < 70 {
		status = "unhealthy"
	}

	errorCounts := make(map[string]int64, len(c.errorCounts))
	for k, v := range c.errorCounts {
		errorCounts[k] = v
	}

	return Snapshot{
		Status:              status,
		UptimeSeconds:       time.Since(c.startTime).Seconds(),
		TotalRequests:       c.totalRequests,
		SuccessfulRequests:  c.successfulRequests,
		FailedRequests:      c.failedRequests,
		SuccessRate:         successRate,
		AverageResponseSecs: avg,
		MemoryUsageMB:       float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:          runtime.NumGoroutine(),
		ErrorCounts:         errorCounts,
	}
}
