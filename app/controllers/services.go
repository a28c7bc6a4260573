package controllers

import (
	"sync"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/authentication"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/billing"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/documents"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/statistics"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/users"
)

// DraftSweeper triggers one abandoned-draft sweep; the job queue manager in production.
type DraftSweeper interface {
	RunDraftSweepOnce() error
}

// Services bundles the domain services the handlers call.
type Services struct {
	Documents      *documents.Service
	Reconcile      *reconcile.Service
	Authentication *authentication.Service
	Billing        *billing.Service
	Users          *users.Service
	Drafts         DraftSweeper
	Statistics     *statistics.Service
}

var (
	servicesMu sync.RWMutex
	services   *Services
)

// SetServices installs the services used by all handlers. Call it once before
// the router is installed.
func SetServices(s *Services) {
	servicesMu.Lock()
	defer servicesMu.Unlock()
	services = s
}

func svc() *Services {
	servicesMu.RLock()
	defer servicesMu.RUnlock()
	if services == nil {
		return &Services{}
	}
	return services
}
