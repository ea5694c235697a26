package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Conversation metrics
	activeConversations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_assistant_active_conversations",
		Help: "Number of conversations currently running",
	})

	totalConversations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_assistant_conversations_total",
		Help: "Total number of conversations started",
	})

	conversationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_conversation_duration_seconds",
		Help:    "Duration of conversations in seconds",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1800},
	})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_turns_total",
		Help: "Conversation loop iterations by outcome",
	}, []string{"outcome"}) // reply, empty, exit, error

	// STT metrics
	sttListens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_stt_listens_total",
		Help: "Total number of listen invocations by result",
	}, []string{"status"})

	sttLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_stt_listen_seconds",
		Help:    "Time from opening the transcription socket to a finished listen",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	// LLM metrics
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_llm_requests_total",
		Help: "Total number of language model requests",
	}, []string{"status"})

	llmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_llm_latency_seconds",
		Help:    "Language model completion latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// TTS metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_tts_requests_total",
		Help: "Total number of TTS requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_tts_latency_seconds",
		Help:    "TTS request to end of playback in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	ttsFirstByte = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_tts_first_byte_seconds",
		Help:    "TTS time to first audio byte in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	micInputLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_assistant_mic_input_rms",
		Help: "RMS level of the most recent microphone buffer",
	})

	// Upload service metrics
	uploadRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_assistant_upload_requests_total",
		Help: "Total number of /process-audio requests by response code",
	}, []string{"code"})

	uploadAudioDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_assistant_upload_audio_seconds",
		Help:    "Duration of uploaded WAV audio in seconds",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120},
	})
)

// Metrics tracks metrics for a single conversation
type Metrics struct {
	conversationID string
	startTime      time.Time
	mu             sync.Mutex
	ended          bool
}

// NewConversationMetrics creates a new metrics tracker for a conversation
func NewConversationMetrics(conversationID string) *Metrics {
	return &Metrics{
		conversationID: conversationID,
		startTime:      time.Now(),
	}
}

// RecordConversationStart records the start of a conversation
func (m *Metrics) RecordConversationStart() {
	activeConversations.Inc()
	totalConversations.Inc()
}

// RecordConversationEnd records the end of a conversation; repeated calls are ignored
func (m *Metrics) RecordConversationEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true
	activeConversations.Dec()
	conversationDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordTurn records one loop iteration outcome
func (m *Metrics) RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// RecordListen records the result and duration of one listen
func RecordListen(status string, elapsed time.Duration) {
	sttListens.WithLabelValues(status).Inc()
	sttLatency.Observe(elapsed.Seconds())
}

// RecordLLM records one language model call
func RecordLLM(success bool, elapsed time.Duration) {
	llmLatency.Observe(elapsed.Seconds())
	llmRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTTS records one synthesis call
func RecordTTS(success bool, elapsed time.Duration) {
	ttsLatency.Observe(elapsed.Seconds())
	ttsRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordTTSFirstByte records time to first synthesized byte
func RecordTTSFirstByte(elapsed time.Duration) {
	ttsFirstByte.Observe(elapsed.Seconds())
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func RecordAudioBytes(direction string, bytes int) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// SetMicLevel publishes the latest microphone RMS level
func SetMicLevel(rms float64) {
	micInputLevel.Set(rms)
}

// RecordUpload records a finished upload request
func RecordUpload(code int) {
	uploadRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordUploadAudio records the duration of an uploaded recording
func RecordUploadAudio(d time.Duration) {
	uploadAudioDuration.Observe(d.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
