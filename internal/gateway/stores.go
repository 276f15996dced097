// Package gateway serves the list and settings stores over HTTP. Each signed-in
// employee gets their own set of stores, built on first use and dropped once
// the session cache expires it.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"hrportal/internal/apiclient"
	"hrportal/internal/approval"
	"hrportal/internal/attendance"
	"hrportal/internal/auth"
	"hrportal/internal/kv"
	"hrportal/internal/metrics"
	"hrportal/internal/notification"
	"hrportal/internal/organization"
	"hrportal/internal/queue"
	"hrportal/internal/vacation"
)

// Deps are the shared collaborators every Stores is built from.
type Deps struct {
	Client    apiclient.Doer
	KV        kv.Store
	Publisher queue.Publisher
	PageSize  int
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// Stores is the store context of one employee.
type Stores struct {
	Attendance   *attendance.Store
	Vacation     *vacation.HistoryStore
	Inbox        *approval.InboxStore
	Organization *organization.Store
	Settings     *notification.SettingsStore

	mu             sync.Mutex
	settingsLoaded bool
}

// NewStores builds the stores for one employee. Settings are kept under a
// per-subject key prefix and synced to the backend when employeeID is known.
func NewStores(d Deps, subject string, employeeID int64) *Stores {
	log := d.Logger.With().Str("subject", subject).Logger()
	m := d.Metrics
	if m == nil {
		m = metrics.Nop()
	}

	var opts []notification.SettingsOption
	if d.Publisher != nil && employeeID > 0 {
		opts = append(opts, notification.WithSync(d.Publisher, employeeID))
	}
	settingsKV := kv.Prefixed{Store: d.KV, Prefix: "user:" + subject + ":"}

	return &Stores{
		Attendance:   attendance.NewStore(d.Client, d.PageSize, log, m),
		Vacation:     vacation.NewHistoryStore(d.Client, d.PageSize, log, m),
		Inbox:        approval.NewInboxStore(d.Client, d.PageSize, log, m),
		Organization: organization.NewStore(d.Client, log),
		Settings:     notification.NewSettingsStore(settingsKV, log, opts...),
	}
}

// EnsureSettingsLoaded loads saved settings once. A failed load is retried on
// the next call.
func (s *Stores) EnsureSettingsLoaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingsLoaded {
		return nil
	}
	if err := s.Settings.LoadSettings(ctx); err != nil {
		return err
	}
	s.settingsLoaded = true
	return nil
}

// Sessions caches one Stores per subject.
type Sessions struct {
	deps  Deps
	mu    sync.Mutex
	cache *expirable.LRU[string, *Stores]
}

// NewSessions keeps at most size store contexts, each for ttl after it was built.
func NewSessions(d Deps, size int, ttl time.Duration) *Sessions {
	if size <= 0 {
		size = 1000
	}
	return &Sessions{
		deps:  d,
		cache: expirable.NewLRU[string, *Stores](size, nil, ttl),
	}
}

// For returns the caller's stores, creating them on first use.
func (s *Sessions) For(claims auth.Claims) (*Stores, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("gateway: token has no subject")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.cache.Get(claims.Subject); ok {
		return st, nil
	}
	st := NewStores(s.deps, claims.Subject, claims.EmployeeID)
	s.cache.Add(claims.Subject, st)
	return st, nil
}

// Len is the number of live store contexts.
func (s *Sessions) Len() int {
	return s.cache.Len()
}
