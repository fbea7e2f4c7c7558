package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/gyan/internal/billing"
	"github.com/dukerupert/gyan/internal/cart"
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/kvstore"
	"github.com/dukerupert/gyan/internal/notify"
	"github.com/dukerupert/gyan/internal/order"
	"github.com/dukerupert/gyan/internal/pricing"
	"github.com/dukerupert/gyan/internal/promotion"
	"github.com/dukerupert/gyan/internal/telemetry"
)

// AnalyticsPage is the page name stamped on checkout analytics events.
const AnalyticsPage = "checkout"

// ManagerConfig holds the collaborators shared by every visitor.
type ManagerConfig struct {
	Store     kvstore.Store
	Gateway   billing.Gateway
	Catalog   *promotion.Catalog
	Pricer    *pricing.Calculator
	Notifier  notify.Notifier
	Navigator notify.Navigator
	Metrics   *telemetry.CheckoutMetrics
	Mailer    ConfirmationMailer
	Currency  string
	Logger    *slog.Logger
}

// Manager keeps one Service per visitor. Each visitor's keys live in their
// own namespace of the shared store.
type Manager struct {
	cfg       ManagerConfig
	validator *Validator

	mu       sync.Mutex
	services map[string]*entry
	now      func() time.Time
}

type entry struct {
	svc      *Service
	lastUsed time.Time
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = promotion.NewDefaultCatalog()
	}
	if cfg.Pricer == nil {
		cfg.Pricer = pricing.NewCalculator(nil)
	}
	return &Manager{
		cfg:       cfg,
		validator: NewValidator(),
		services:  make(map[string]*entry),
		now:       time.Now,
	}
}

// Catalog returns the shared promotion catalog.
func (m *Manager) Catalog() *promotion.Catalog {
	return m.cfg.Catalog
}

// For returns the Service of visitorID, creating it on first use.
func (m *Manager) For(ctx context.Context, visitorID string) (*Service, error) {
	if visitorID == "" {
		return nil, domain.Invalid("checkout.manager", "visitor id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.services[visitorID]; ok {
		e.lastUsed = m.now()
		return e.svc, nil
	}

	svc, err := m.newService(visitorID)
	if err != nil {
		return nil, err
	}
	m.services[visitorID] = &entry{svc: svc, lastUsed: m.now()}
	m.cfg.Logger.DebugContext(ctx, "checkout session created", "visitor_id", visitorID)
	return svc, nil
}

func (m *Manager) newService(visitorID string) (*Service, error) {
	ns := kvstore.Namespace(m.cfg.Store, visitorID)
	carts := cart.NewStore(ns)
	orders := order.NewLog(ns)
	logger := m.cfg.Logger.With("visitor_id", visitorID)

	return NewService(Config{
		Carts:     carts,
		Store:     ns,
		Orders:    orders,
		Finalizer: order.NewFinalizer(orders, carts, m.cfg.Metrics, logger),
		Gateway:   m.cfg.Gateway,
		Catalog:   m.cfg.Catalog,
		Pricer:    m.cfg.Pricer,
		Validator: m.validator,
		Notifier:  m.cfg.Notifier,
		Navigator: m.cfg.Navigator,
		Events:    telemetry.NewEventLog(ns, AnalyticsPage),
		Metrics:   m.cfg.Metrics,
		Mailer:    m.cfg.Mailer,
		Currency:  m.cfg.Currency,
		Logger:    logger,
	})
}

// Len reports how many visitors have a live session.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.services)
}

// Prune drops sessions idle for longer than maxIdle. Their carts and
// orders stay in the store; only the in-memory wizard state is lost.
// Sessions holding a captured payment are kept until it is recorded.
func (m *Manager) Prune(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	n := 0
	for id, e := range m.services {
		if e.lastUsed.Before(cutoff) && !e.svc.PaymentPending() {
			delete(m.services, id)
			n++
		}
	}
	return n
}

// RunPruner prunes idle sessions every interval until ctx is done.
func (m *Manager) RunPruner(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Prune(maxIdle); n > 0 {
				m.cfg.Logger.Info("pruned idle checkout sessions", "count", n)
			}
		}
	}
}
