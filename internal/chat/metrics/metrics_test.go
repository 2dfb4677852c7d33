package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestMetrics() *ChatMetrics {
	m := GetChatMetrics()
	m.Reset()
	return m
}

func TestGetChatMetricsSingleton(t *testing.T) {
	m1 := GetChatMetrics()
	m2 := GetChatMetrics()
	assert.Same(t, m1, m2)
}

func TestRecordQuery(t *testing.T) {
	m := newTestMetrics()

	m.RecordQuery(nil)
	m.RecordQuery(assert.AnError)

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(2), queries["total"])
	assert.Equal(t, uint64(1), queries["errors"])
}

func TestRecordRetrieval(t *testing.T) {
	m := newTestMetrics()

	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(50*time.Millisecond, assert.AnError)

	stats := m.Stats()
	retrieval := stats["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(2), retrieval["total"])
	assert.Equal(t, uint64(1), retrieval["errors"])
	// Failed retrievals do not contribute duration.
	assert.InDelta(t, 0.1, retrieval["total_duration_secs"].(float64), 0.001)
}

func TestRecordRerank(t *testing.T) {
	m := newTestMetrics()

	m.RecordRerank(20*time.Millisecond, false)
	m.RecordRerank(10*time.Millisecond, true)

	stats := m.Stats()
	rerank := stats["rerank"].(map[string]interface{})
	assert.Equal(t, uint64(2), rerank["total"])
	assert.Equal(t, uint64(1), rerank["fallbacks"])
}

func TestRecordLLMCall(t *testing.T) {
	m := newTestMetrics()

	m.RecordLLMCall(500*time.Millisecond, nil)
	m.RecordLLMCall(200*time.Millisecond, assert.AnError)
	m.RecordLLMRetry()

	stats := m.Stats()
	llm := stats["llm"].(map[string]interface{})
	assert.Equal(t, uint64(2), llm["calls_total"])
	assert.Equal(t, uint64(1), llm["errors"])
	assert.Equal(t, uint64(1), llm["retries"])
	assert.InDelta(t, 0.5, llm["total_duration_secs"].(float64), 0.001)
	assert.InDelta(t, 0.25, llm["avg_duration_secs"].(float64), 0.001)
}

func TestRecordAdmissionAndStream(t *testing.T) {
	m := newTestMetrics()

	m.RecordAdmissionRejection()
	m.RecordAdmissionRejection()
	m.RecordAdmissionTimeout()
	m.RecordStreamError()

	stats := m.Stats()
	admission := stats["admission"].(map[string]interface{})
	assert.Equal(t, uint64(2), admission["rejections"])
	assert.Equal(t, uint64(1), admission["timeouts"])
	streaming := stats["streaming"].(map[string]interface{})
	assert.Equal(t, uint64(1), streaming["errors"])
}

func TestConcurrentRecording(t *testing.T) {
	m := newTestMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(nil)
			m.RecordRetrieval(time.Millisecond, nil)
			m.RecordLLMCall(time.Millisecond, nil)
		}()
	}
	wg.Wait()

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(50), queries["total"])
	retrieval := stats["retrieval"].(map[string]interface{})
	assert.Equal(t, uint64(50), retrieval["total"])
}

func TestReset(t *testing.T) {
	m := newTestMetrics()

	m.RecordQuery(nil)
	m.RecordStreamError()
	m.Reset()

	stats := m.Stats()
	queries := stats["queries"].(map[string]interface{})
	assert.Equal(t, uint64(0), queries["total"])
	streaming := stats["streaming"].(map[string]interface{})
	assert.Equal(t, uint64(0), streaming["errors"])
}
