// Package metrics collects chat service counters.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ChatMetrics holds per-process counters for the chat pipeline. All counters
// are safe for concurrent use.
type ChatMetrics struct {
	// query counters
	queriesTotal  uint64
	queriesErrors uint64

	// retrieval counters
	retrievalTotal    uint64
	retrievalDuration float64 // seconds
	retrievalErrors   uint64

	// rerank counters
	rerankTotal     uint64
	rerankDuration  float64 // seconds
	rerankFallbacks uint64

	// LLM counters
	llmCallsTotal    uint64
	llmCallsDuration float64 // seconds
	llmCallsErrors   uint64
	llmCallsRetries  uint64

	// admission counters
	admissionRejections uint64
	admissionTimeouts   uint64

	// streaming counters
	streamErrors uint64

	startTime  time.Time
	durationMu sync.Mutex
}

var (
	globalChatMetrics *ChatMetrics
	chatMetricsOnce   sync.Once
)

// GetChatMetrics returns the process-wide metrics instance.
func GetChatMetrics() *ChatMetrics {
	chatMetricsOnce.Do(func() {
		globalChatMetrics = &ChatMetrics{
			startTime: time.Now(),
		}
	})
	return globalChatMetrics
}

// RecordQuery records one chat query.
func (m *ChatMetrics) RecordQuery(err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
	}
}

// RecordRetrieval records one retrieval phase.
func (m *ChatMetrics) RecordRetrieval(duration time.Duration, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordRerank records one rerank attempt; fallback marks any parse or call
// failure that kept the original candidate order.
func (m *ChatMetrics) RecordRerank(duration time.Duration, fallback bool) {
	atomic.AddUint64(&m.rerankTotal, 1)
	if fallback {
		atomic.AddUint64(&m.rerankFallbacks, 1)
	}

	m.durationMu.Lock()
	m.rerankDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMCall records one generation call.
func (m *ChatMetrics) RecordLLMCall(duration time.Duration, err error) {
	atomic.AddUint64(&m.llmCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.llmCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.llmCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordLLMRetry records one generation retry.
func (m *ChatMetrics) RecordLLMRetry() {
	atomic.AddUint64(&m.llmCallsRetries, 1)
}

// RecordAdmissionRejection records a request rejected at the concurrency
// limit.
func (m *ChatMetrics) RecordAdmissionRejection() {
	atomic.AddUint64(&m.admissionRejections, 1)
}

// RecordAdmissionTimeout records a request that exceeded its deadline.
func (m *ChatMetrics) RecordAdmissionTimeout() {
	atomic.AddUint64(&m.admissionTimeouts, 1)
}

// RecordStreamError records a stream terminated by an error event.
func (m *ChatMetrics) RecordStreamError() {
	atomic.AddUint64(&m.streamErrors, 1)
}

// Stats returns a snapshot for the stats endpoint.
func (m *ChatMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	rerankDuration := m.rerankDuration
	llmDuration := m.llmCallsDuration
	m.durationMu.Unlock()

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrievalDuration := 0.0
	if retrievalTotal > 0 {
		avgRetrievalDuration = retrievalDuration / float64(retrievalTotal)
	}

	rerankTotal := atomic.LoadUint64(&m.rerankTotal)
	avgRerankDuration := 0.0
	if rerankTotal > 0 {
		avgRerankDuration = rerankDuration / float64(rerankTotal)
	}

	llmTotal := atomic.LoadUint64(&m.llmCallsTotal)
	avgLLMDuration := 0.0
	if llmTotal > 0 {
		avgLLMDuration = llmDuration / float64(llmTotal)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":  atomic.LoadUint64(&m.queriesTotal),
			"errors": atomic.LoadUint64(&m.queriesErrors),
		},
		"retrieval": map[string]interface{}{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrievalDuration,
			"errors":              atomic.LoadUint64(&m.retrievalErrors),
		},
		"rerank": map[string]interface{}{
			"total":               rerankTotal,
			"total_duration_secs": rerankDuration,
			"avg_duration_secs":   avgRerankDuration,
			"fallbacks":           atomic.LoadUint64(&m.rerankFallbacks),
		},
		"llm": map[string]interface{}{
			"calls_total":         llmTotal,
			"total_duration_secs": llmDuration,
			"avg_duration_secs":   avgLLMDuration,
			"errors":              atomic.LoadUint64(&m.llmCallsErrors),
			"retries":             atomic.LoadUint64(&m.llmCallsRetries),
		},
		"admission": map[string]interface{}{
			"rejections": atomic.LoadUint64(&m.admissionRejections),
			"timeouts":   atomic.LoadUint64(&m.admissionTimeouts),
		},
		"streaming": map[string]interface{}{
			"errors": atomic.LoadUint64(&m.streamErrors),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset clears all counters. Test use only.
func (m *ChatMetrics) Reset() {
	atomic.StoreUint64(&m.queriesTotal, 0)
	atomic.StoreUint64(&m.queriesErrors, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.rerankTotal, 0)
	atomic.StoreUint64(&m.rerankFallbacks, 0)
	atomic.StoreUint64(&m.llmCallsTotal, 0)
	atomic.StoreUint64(&m.llmCallsErrors, 0)
	atomic.StoreUint64(&m.llmCallsRetries, 0)
	atomic.StoreUint64(&m.admissionRejections, 0)
	atomic.StoreUint64(&m.admissionTimeouts, 0)
	atomic.StoreUint64(&m.streamErrors, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.rerankDuration = 0
	m.llmCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
