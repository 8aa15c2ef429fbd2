// Package metrics exposes the Prometheus instruments for the costing flow
// and the survival game.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TeamsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cafeboss",
		Name:      "teams_joined_total",
		Help:      "Teams created since process start.",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cafeboss",
		Name:      "submissions_total",
		Help:      "Stage submissions by kind and outcome.",
	}, []string{"kind", "outcome"})

	CrisisDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cafeboss",
		Name:      "crisis_decisions_total",
		Help:      "Resolved survival-game decisions by month and choice.",
	}, []string{"month", "choice"})

	LoanSharkLoans = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cafeboss",
		Name:      "loan_shark_loans_total",
		Help:      "Forced loans injected by the loan-shark rule.",
	})

	GamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cafeboss",
		Name:      "games_finished_total",
		Help:      "Terminal settlements by result.",
	}, []string{"result"})
)

// Outcome labels for Submissions.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)
