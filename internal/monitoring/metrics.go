package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifactu_submissions_total",
			Help: "Registros de facturación enviados a la AEAT, por resultado",
		},
		[]string{"outcome"},
	)
	SubmissionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verifactu_submission_duration_seconds",
			Help:    "Duración del ciclo de firma y envío en segundos",
			Buckets: prometheus.LinearBuckets(0, 2, 15), // hasta 30 s (deadline de red)
		},
	)
	ChainVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifactu_chain_verifications_total",
			Help: "Verificaciones de cadena ejecutadas, por resultado (ok|broken)",
		},
		[]string{"result"},
	)
	PurgedUsersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "account_purged_users_total",
			Help: "Usuarios purgados definitivamente por el worker",
		},
	)
	PurgedRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_purged_rows_total",
			Help: "Filas borradas por la purga en cascada, por tabla",
		},
		[]string{"table"},
	)
	PurgeSweepErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "account_purge_sweep_errors_total",
			Help: "Usuarios cuya purga falló en el barrido (se reintentan en el siguiente)",
		},
	)
)

// InitMetrics registra los colectores en el registry por defecto.
func InitMetrics() {
	for _, c := range []prometheus.Collector{
		SubmissionsTotal,
		SubmissionDuration,
		ChainVerifications,
		PurgedUsersTotal,
		PurgedRowsTotal,
		PurgeSweepErrors,
	} {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Msg("no se pudo registrar el colector de métricas")
		}
	}
}
