package session

import (
	"slices"
	"sync"
	"time"
)

// Metrics collects per-call counters for the call detail record written at
// hangup. Safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	startTime   time.Time
	endTime     time.Time
	totalSpeech time.Duration
	sttCalls    int
	llmCalls    int
	ttsCalls    int
	dtmfDigits  int
	features    []string
}

// NewMetrics starts a metrics record at the current time.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// AddSpeech accumulates detected caller speech time.
func (m *Metrics) AddSpeech(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalSpeech += d
}

// CountSTT increments the transcription counter.
func (m *Metrics) CountSTT() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sttCalls++
}

// CountLLM increments the completion counter.
func (m *Metrics) CountLLM() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llmCalls++
}

// CountTTS increments the synthesis counter.
func (m *Metrics) CountTTS() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttsCalls++
}

// CountDTMF increments the DTMF digit counter.
func (m *Metrics) CountDTMF() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dtmfDigits++
}

// AddFeature records a feature visit, de-duplicated in visit order.
func (m *Metrics) AddFeature(feature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.features, feature) {
		m.features = append(m.features, feature)
	}
}

// End stamps the call end time. Later calls keep the first stamp.
func (m *Metrics) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.endTime.IsZero() {
		m.endTime = time.Now()
	}
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalSpeech  time.Duration
	STTCalls     int
	LLMCalls     int
	TTSCalls     int
	DTMFDigits   int
	FeaturesUsed []string
}

// Duration returns the call length; for a live call, time since start.
func (s Snapshot) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		StartTime:    m.startTime,
		EndTime:      m.endTime,
		TotalSpeech:  m.totalSpeech,
		STTCalls:     m.sttCalls,
		LLMCalls:     m.llmCalls,
		TTSCalls:     m.ttsCalls,
		DTMFDigits:   m.dtmfDigits,
		FeaturesUsed: slices.Clone(m.features),
	}
}
