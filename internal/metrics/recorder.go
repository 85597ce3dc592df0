package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"guildbot/internal/events"
)

// Recorder keeps the Prometheus counters for bot activity. A nil Recorder
// ignores every observation.
type Recorder struct {
	events     *prometheus.CounterVec
	rateLimits *prometheus.CounterVec
	modules    *prometheus.CounterVec
}

// NewRecorder registers the bot counters on registerer.
func NewRecorder(registerer prometheus.Registerer) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Recorder{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_events_total",
				Help: "Total number of client events emitted, by kind",
			},
			[]string{"kind"},
		),
		rateLimits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_rate_limits_total",
				Help: "Total number of REST rate limit responses",
			},
			[]string{"route", "global"},
		),
		modules: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guildbot_modules_total",
				Help: "Total number of module initializations, by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveEvent counts one emitted event.
func (r *Recorder) ObserveEvent(ev events.Event) {
	if r == nil || ev == nil {
		return
	}
	r.events.WithLabelValues(ev.Kind().String()).Inc()
	if rl, ok := ev.(events.RateLimit); ok {
		r.rateLimits.WithLabelValues(rl.Route, strconv.FormatBool(rl.Global)).Inc()
	}
}

// ObserveModule counts one module initialization attempt.
func (r *Recorder) ObserveModule(name string, err error) {
	if r == nil {
		return
	}
	result := "loaded"
	if err != nil {
		result = "failed"
	}
	r.modules.WithLabelValues(result).Inc()
}

// Register counts every event emitted on bus, once per event.
func (r *Recorder) Register(bus *events.Bus) {
	for kind := events.KindReady; kind <= events.KindError; kind++ {
		bus.On(kind, func(_ context.Context, ev events.Event) {
			r.ObserveEvent(ev)
		})
	}
}
