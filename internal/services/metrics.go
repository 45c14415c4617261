package services

import "github.com/prometheus/client_golang/prometheus"

// Collaborator call kinds used as metric labels.
const (
	kindGenerate  = "generate"
	kindTranslate = "translate"
)

// generationCalls counts generator/translator calls by kind and outcome
// ("ok" or "error"). Retries are counted as separate calls.
var generationCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "narration_generation_calls_total",
		Help: "Total number of narration generation and translation collaborator calls.",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(generationCalls)
}

func observeCall(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	generationCalls.WithLabelValues(kind, outcome).Inc()
}
