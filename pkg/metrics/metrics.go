package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes recorded by the session middleware.
const (
	OutcomePublic          = "public"
	OutcomeAccessValid     = "access_valid"
	OutcomeRefreshed       = "refreshed"
	OutcomeAccessInvalid   = "access_invalid"
	OutcomeRefreshExpired  = "refresh_expired"
	OutcomeRefreshInvalid  = "refresh_invalid"
	OutcomeUnauthenticated = "unauthenticated"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionOutcomes *prometheus.CounterVec
	logins          *prometheus.CounterVec
	registrations   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_session_outcomes_total",
			Help: "Requests seen by the session middleware, by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts, by result.",
		}, []string{"result"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Accounts created.",
		}),
	}
	reg.MustRegister(m.sessionOutcomes, m.logins, m.registrations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SessionOutcome counts one middleware decision. All recording methods
// are no-ops on a nil *Metrics.
func (m *Metrics) SessionOutcome(outcome string) {
	if m == nil {
		return
	}
	m.sessionOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Login(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Registration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
