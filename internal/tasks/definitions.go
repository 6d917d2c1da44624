package tasks

import (
	"go.uber.org/zap"

	"foundation_site/internal/notify"
)

// Deps are the collaborators the built-in tasks need. A nil Verifier leaves
// reconcile_donations registered but failing with a configuration error.
type Deps struct {
	Donations ReconcileStore
	Digest    DigestStore
	Scheduler Scheduler
	Verifier  Verifier
	Mailer    notify.Mailer
	Alerter   notify.Alerter
	DigestCfg DigestConfig
	Log       *zap.Logger
}

// DefineTasks registers all available tasks
func DefineTasks(r *Registry, deps Deps) {
	r.Define(NewLogInfoTask(deps.Log))
	r.Define(NewReconcileDonationsTask(deps.Donations, deps.Verifier, deps.Log))
	r.Define(NewAdminDigestTask(deps.Digest, deps.Scheduler, deps.Mailer, deps.Alerter, deps.DigestCfg, deps.Log))
}
