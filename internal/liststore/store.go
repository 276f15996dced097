// Package liststore holds the paginated list store every list screen is built on:
// filter fields become query params, one GET fetches a page, and the page
// replaces the held list and its pagination metadata.
package liststore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"hrportal/internal/apiclient"
	"hrportal/internal/envelope"
	"hrportal/internal/metrics"
)

// DefaultPageSize is used when a store is built without one.
const DefaultPageSize = 10

// ErrSuperseded is returned by Fetch when a newer fetch was issued before this
// one resolved. The store state is left to the newer fetch.
var ErrSuperseded = errors.New("liststore: response superseded by a newer fetch")

// Page is one page of a server-side list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// Snapshot is a consistent copy of a store's state.
type Snapshot[T any] struct {
	Page[T]
	Loading bool              `json:"loading"`
	Filters map[string]string `json:"filters,omitempty"`
}

// Config names the store and the endpoint it reads.
type Config struct {
	Name     string
	Path     string
	PageSize int
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
}

// Store is a paginated list of T backed by one GET endpoint. It is safe for
// concurrent use; the lock is never held across the HTTP call.
type Store[T any] struct {
	client  apiclient.Doer
	name    string
	path    string
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu         sync.RWMutex
	filters    map[string]string
	page       Page[T]
	inflight   int
	generation uint64
}

// New creates a store starting at page 1 with no items.
func New[T any](client apiclient.Doer, cfg Config) *Store[T] {
	size := cfg.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Nop()
	}
	return &Store[T]{
		client:  client,
		name:    cfg.Name,
		path:    cfg.Path,
		log:     cfg.Logger.With().Str("store", cfg.Name).Logger(),
		metrics: m,
		filters: make(map[string]string),
		page:    Page[T]{Items: []T{}, Page: 1, Size: size},
	}
}

// SetFilter sets one filter field. An empty value clears it; cleared and
// never-set filters are both left out of the request.
func (s *Store[T]) SetFilter(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.filters, name)
		return
	}
	s.filters[name] = value
}

// Filter returns the current value of a filter field, "" when unset.
func (s *Store[T]) Filter(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters[name]
}

// ClearFilters empties every filter field without fetching.
func (s *Store[T]) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.filters)
}

// ResetFilters clears every filter and re-fetches page 1.
func (s *Store[T]) ResetFilters(ctx context.Context) error {
	s.ClearFilters()
	return s.Fetch(ctx, 1)
}

// SetPageSize changes the size requested by the next fetch.
func (s *Store[T]) SetPageSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page.Size = size
}

// Loading reports whether any fetch is in flight.
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Snapshot copies the current state.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.page
	p.Items = slices.Clone(s.page.Items)
	return Snapshot[T]{
		Page:    p,
		Loading: s.inflight > 0,
		Filters: maps.Clone(s.filters),
	}
}

// Fetch loads the given 1-based page (values below 1 mean page 1) using the
// current filters and page size. On success the held page is replaced with
// what the server returned, including its page and size. On failure the held
// page is untouched and the error is returned.
func (s *Store[T]) Fetch(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.inflight++
	params := s.paramsLocked(page)
	s.mu.Unlock()

	loading := s.metrics.StoreLoading.WithLabelValues(s.name)
	loading.Inc()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		loading.Dec()
	}()

	raw, err := s.client.Do(ctx, http.MethodGet, s.path, apiclient.Request{Params: params})
	if err != nil {
		s.metrics.StoreFetches.WithLabelValues(s.name, "error").Inc()
		return fmt.Errorf("%s: fetch page %d: %w", s.name, page, err)
	}

	result, err := envelope.NormalizeOrBare[Page[T]](raw)
	if err != nil {
		s.metrics.StoreFetches.WithLabelValues(s.name, "malformed").Inc()
		s.log.Error().Err(err).Int("page", page).Msg("unexpected list response")
		return fmt.Errorf("%s: fetch page %d: %w", s.name, page, err)
	}
	if result.Items == nil {
		result.Items = []T{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.metrics.StoreFetches.WithLabelValues(s.name, "superseded").Inc()
		s.log.Debug().Uint64("generation", gen).Uint64("latest", s.generation).Msg("discarding stale page")
		return ErrSuperseded
	}
	s.page = result
	s.metrics.StoreFetches.WithLabelValues(s.name, "ok").Inc()
	return nil
}

func (s *Store[T]) paramsLocked(page int) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(s.page.Size))
	for name, value := range s.filters {
		if value != "" {
			params.Set(name, value)
		}
	}
	return params
}
