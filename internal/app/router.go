package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopbooks/shopbooks/internal/accounts"
	"github.com/shopbooks/shopbooks/internal/fiscal"
	"github.com/shopbooks/shopbooks/internal/ledger"
	"github.com/shopbooks/shopbooks/internal/outbox"
	"github.com/shopbooks/shopbooks/internal/reports"
	"github.com/shopbooks/shopbooks/internal/syncer"
	"github.com/shopbooks/shopbooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AccountsHandler *accounts.Handler
	LedgerHandler   *ledger.Handler
	ReportsHandler  *reports.Handler
	OutboxHandler   *outbox.Handler
	SyncHandler     *syncer.Handler
	FiscalHandler   *fiscal.Handler
	JobsHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with shopbooks defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: params.Logger, Config: params.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", params.AccountsHandler.MountRoutes)
		r.Route("/transactions", params.LedgerHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
		r.Route("/queue", params.OutboxHandler.MountRoutes)
		r.Route("/sync", params.SyncHandler.MountRoutes)
		r.Route("/financial-years", params.FiscalHandler.MountRoutes)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
