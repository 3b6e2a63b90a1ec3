package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clara_model_calls_total",
		Help: "Model calls by provider and outcome",
	}, []string{"provider", "outcome"})

	modelRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clara_model_retries_total",
		Help: "Retried model calls by provider",
	}, []string{"provider"})

	modelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clara_model_call_seconds",
		Help:    "Latency of single model call attempts",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "clara_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	audioSynth = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clara_audio_synth_total",
		Help: "Audio synthesis calls by engine and outcome",
	}, []string{"engine", "outcome"})

	audioCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clara_audio_cache_hits_total",
		Help: "Audio items served from the on-disk cache",
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clara_stage_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.1, 1, 5, 15, 60, 300, 900},
	}, []string{"stage", "status"})
)

// RecordModelCall records one model call attempt.
func RecordModelCall(provider string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	modelCalls.WithLabelValues(provider, outcome).Inc()
	modelLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordModelRetry records a retry after a transient failure.
func RecordModelRetry(provider string) {
	modelRetries.WithLabelValues(provider).Inc()
}

// RecordBreakerState records a circuit breaker state transition.
func RecordBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordAudioSynth records one synthesis attempt.
func RecordAudioSynth(engine string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	audioSynth.WithLabelValues(engine, outcome).Inc()
}

// RecordAudioCacheHit records an audio item that needed no synthesis.
func RecordAudioCacheHit() {
	audioCacheHits.Inc()
}

// RecordStage records a completed or failed pipeline stage.
func RecordStage(stage, status string, elapsed time.Duration) {
	stageDuration.WithLabelValues(stage, status).Observe(elapsed.Seconds())
}
