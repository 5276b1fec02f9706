package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del núcleo de autenticación. Viven en un paquete aparte para que
// servicios y capa HTTP las compartan sin ciclos de import.

var (
	AuthEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staffauth_auth_events_total",
		Help: "Eventos de auditoría emitidos, por nombre de evento",
	}, []string{"event"})

	LoginOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staffauth_login_outcomes_total",
		Help: "Resultados de intentos de login",
	}, []string{"outcome"})

	DirectoryUnavailable = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staffauth_directory_unavailable_total",
		Help: "Llamadas a directorios que terminaron en indisponibilidad",
	}, []string{"source"})

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staffauth_tokens_issued_total",
		Help: "Tokens emitidos por tipo (access, refresh, system o tipo de token corto)",
	}, []string{"kind"})

	VerificationForwardLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "staffauth_token_verification_forward_ms",
		Help:    "Latencia de los reenvíos al servicio de verificación de tokens en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// Register registra las métricas en el registry dado (o el default si nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AuthEvents, LoginOutcomes, DirectoryUnavailable, TokensIssued, VerificationForwardLatency} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
