package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	IdentitiesCreated  prometheus.Counter
	IdentitiesVerified prometheus.Counter
	EndorsementsGiven  prometheus.Counter
	CredentialsIssued  prometheus.Counter
	ReputationUpdates  prometheus.Counter
	OperationsRejected *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer.
func New() *Metrics {
	return &Metrics{
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selfid_identities_created_total",
			Help: "Total number of identities registered",
		}),
		IdentitiesVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selfid_identities_verified_total",
			Help: "Total number of identities verified by a trusted verifier",
		}),
		EndorsementsGiven: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selfid_endorsements_given_total",
			Help: "Total number of peer endorsements recorded",
		}),
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selfid_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		ReputationUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "selfid_reputation_updates_total",
			Help: "Total number of reputation score changes, including capped ones",
		}),
		OperationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "selfid_operations_rejected_total",
			Help: "Total number of rejected mutating operations by error code",
		}, []string{"code"}),
	}
}
