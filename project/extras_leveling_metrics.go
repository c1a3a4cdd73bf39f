package project

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"k3clevel/common/config"
)

const levelingSubsystem = "bed_leveling"

// LevelingMetrics counts what the leveling streams did with motion lines.
// One instance may be shared by several streams; the stream name is a label.
type LevelingMetrics struct {
	linesLeveled     *prometheus.CounterVec
	linesPassthrough *prometheus.CounterVec
	parseErrors      *prometheus.CounterVec
	jobResets        *prometheus.CounterVec
}

// NewLevelingMetrics registers the counters on reg. A nil reg uses the
// default prometheus registerer.
func NewLevelingMetrics(namespace string, reg prometheus.Registerer) *LevelingMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := []string{"stream"}
	return &LevelingMetrics{
		linesLeveled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: levelingSubsystem,
			Name:      "lines_leveled_total",
			Help:      "Motion lines rewritten with bed leveling applied.",
		}, labels),
		linesPassthrough: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: levelingSubsystem,
			Name:      "lines_passthrough_total",
			Help:      "Lines copied through without leveling.",
		}, labels),
		parseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: levelingSubsystem,
			Name:      "parse_errors_total",
			Help:      "Motion lines that could not be parsed and were sent unmodified.",
		}, labels),
		jobResets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: levelingSubsystem,
			Name:      "job_resets_total",
			Help:      "Position state resets at job start.",
		}, labels),
	}
}

// NewLevelingMetricsFromConfig registers the counters under the configured
// namespace. Build it once per registry and share it between streams.
func NewLevelingMetricsFromConfig(cfg config.StreamConfig, reg prometheus.Registerer) *LevelingMetrics {
	return NewLevelingMetrics(cfg.MetricsNamespace, reg)
}

func (self *LevelingMetrics) leveled(stream string) {
	if self != nil {
		self.linesLeveled.WithLabelValues(stream).Inc()
	}
}

func (self *LevelingMetrics) passthrough(stream string) {
	if self != nil {
		self.linesPassthrough.WithLabelValues(stream).Inc()
	}
}

func (self *LevelingMetrics) parseError(stream string) {
	if self != nil {
		self.parseErrors.WithLabelValues(stream).Inc()
	}
}

func (self *LevelingMetrics) reset(stream string) {
	if self != nil {
		self.jobResets.WithLabelValues(stream).Inc()
	}
}
