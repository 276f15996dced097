package liststore

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hrportal/internal/apiclient"
	"hrportal/internal/metrics"
)

type MockDoer struct {
	mock.Mock
}

func (m *MockDoer) Do(ctx context.Context, method, path string, req apiclient.Request) ([]byte, error) {
	args := m.Called(ctx, method, path, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type row struct {
	ID int `json:"id"`
}

func paramsEqual(want url.Values) any {
	return mock.MatchedBy(func(req apiclient.Request) bool {
		if len(req.Params) != len(want) {
			return false
		}
		for k := range want {
			if req.Params.Get(k) != want.Get(k) {
				return false
			}
		}
		return true
	})
}

func TestFetchSendsOnlyNonEmptyFilters(t *testing.T) {
	doer := new(MockDoer)
	s := New[row](doer, Config{Name: "rows", Path: "/rows", PageSize: 5})
	s.SetFilter("startDate", "2025-01-01")
	s.SetFilter("endDate", "")
	s.SetFilter("status", "APPROVED")
	s.SetFilter("status", "")

	doer.On("Do", mock.Anything, http.MethodGet, "/rows", paramsEqual(url.Values{
		"page":      {"3"},
		"size":      {"5"},
		"startDate": {"2025-01-01"},
	})).Return([]byte(`{"items":[],"page":3,"size":5,"totalCount":0,"totalPages":0}`), nil).Once()

	require.NoError(t, s.Fetch(context.Background(), 3))
	doer.AssertExpectations(t)
}

func TestFetchDefaultsToFirstPage(t *testing.T) {
	doer := new(MockDoer)
	s := New[row](doer, Config{Name: "rows", Path: "/rows"})

	doer.On("Do", mock.Anything, http.MethodGet, "/rows", paramsEqual(url.Values{
		"page": {"1"},
		"size": {"10"},
	})).Return([]byte(`{"items":[],"page":1,"size":10}`), nil).Twice()

	require.NoError(t, s.Fetch(context.Background(), 0))
	require.NoError(t, s.Fetch(context.Background(), -4))
	doer.AssertExpectations(t)
}

func TestFetchAppliesServerPagination(t *testing.T) {
	doer := new(MockDoer)
	m := metrics.Nop()
	s := New[row](doer, Config{Name: "rows", Path: "/rows", PageSize: 10, Metrics: m})

	// the server clamps page 9 to 3 and shrinks the page size
	doer.On("Do", mock.Anything, http.MethodGet, "/rows", mock.Anything).
		Return([]byte(`{"items":[{"id":1},{"id":2}],"page":3,"size":4,"totalCount":10,"totalPages":3}`), nil).Once()

	require.NoError(t, s.Fetch(context.Background(), 9))

	snap := s.Snapshot()
	assert.Equal(t, []row{{ID: 1}, {ID: 2}}, snap.Items)
	assert.Equal(t, 3, snap.Page.Page)
	assert.Equal(t, 4, snap.Size)
	assert.Equal(t, 10, snap.TotalCount)
	assert.Equal(t, 3, snap.TotalPages)
	assert.False(t, snap.Loading)
	assert.LessOrEqual(t, len(snap.Items), snap.Size)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFetches.WithLabelValues("rows", "ok")))

	// the echoed size is what the next request asks for
	doer.On("Do", mock.Anything, http.MethodGet, "/rows", paramsEqual(url.Values{
		"page": {"1"},
		"size": {"4"},
	})).Return([]byte(`{"items":[],"page":1,"size":4,"totalCount":10,"totalPages":3}`), nil).Once()
	require.NoError(t, s.Fetch(context.Background(), 1))
	doer.AssertExpectations(t)
}

func TestFetchAcceptsEnvelopedPage(t *testing.T) {
	doer := new(MockDoer)
	s := New[row](doer, Config{Name: "rows", Path: "/rows"})
	doer.On("Do", mock.Anything, http.MethodGet, "/rows", mock.Anything).
		Return([]byte(`{"success":true,"data":{"items":[{"id":7}],"page":1,"size":10,"totalCount":1,"totalPages":1}}`), nil).Once()

	require.NoError(t, s.Fetch(context.Background(), 1))
	assert.Equal(t, []row{{ID: 7}}, s.Snapshot().Items)
}

func TestFetchFailureKeepsPreviousState(t *testing.T) {
	doer := new(MockDoer)
	s := New[row](doer, Config{Name: "rows", Path: "/rows"})

	doer.On("Do", mock.Anything, http.MethodGet, "/rows", mock.Anything).
		Return([]byte(`{"items":[{"id":1}],"page":1,"size":10,"totalCount":1,"totalPages":1}`), nil).Once()
	require.NoError(t, s.Fetch(context.Background(), 1))
	before := s.Snapshot()

	backendErr := errors.New("connection refused")
	doer.On("Do", mock.Anything, http.MethodGet, "/rows", mock.Anything).Return(nil, backendErr).Once()
	err := s.Fetch(context.Background(), 2)
	assert.ErrorIs(t, err, backendErr)

	doer.On("Do", mock.Anything, http.MethodGet, "/rows", mock.Anything).Return([]byte(`{"items":"nope"}`), nil).Once()
	err = s.Fetch(context.Background(), 2)
	assert.Error(t, err)

	after := s.Snapshot()
	assert.Equal(t, before, after)
	assert.False(t, s.Loading())
}

func TestNullItemsBecomeEmptyList(t *testing.T) {
	doer := new(MockDoer)
	s := New[row](doer, Config{Name: "rows", Path: "/rows"})
	doer.On("Do", mock.Anything, http.MethodGet, "/rows", mock.Anything).
		Return([]byte(`{"items":null,"page":1,"size":10,"totalCount":0,"totalPages":0}`), nil).Once()

	require.NoError(t, s.Fetch(context.Background(), 1))
	assert.NotNil(t, s.Snapshot().Items)
	assert.Empty(t, s.Snapshot().Items)
}

func TestResetFiltersRefetchesFirstPageWithoutFilters(t *testing.T) {
	doer := new(MockDoer)
	s := New[row](doer, Config{Name: "rows", Path: "/rows"})
	s.SetFilter("startDate", "2025-01-01")
	s.SetFilter("employeeId", "42")

	doer.On("Do", mock.Anything, http.MethodGet, "/rows", paramsEqual(url.Values{
		"page": {"1"},
		"size": {"10"},
	})).Return([]byte(`{"items":[],"page":1,"size":10}`), nil).Once()

	require.NoError(t, s.ResetFilters(context.Background()))
	assert.Empty(t, s.Filter("startDate"))
	assert.Empty(t, s.Snapshot().Filters)
	doer.AssertExpectations(t)
}

// gatedDoer blocks each call until its release channel is closed.
type gatedDoer struct {
	started chan struct{}
	release map[string]chan struct{}
	bodies  map[string][]byte
	err     error
}

func (g *gatedDoer) Do(ctx context.Context, method, path string, req apiclient.Request) ([]byte, error) {
	p := req.Params.Get("page")
	g.started <- struct{}{}
	<-g.release[p]
	if g.err != nil {
		return nil, g.err
	}
	return g.bodies[p], nil
}

func TestLoadingIsTrueOnlyWhileInFlight(t *testing.T) {
	for _, fail := range []bool{false, true} {
		g := &gatedDoer{
			started: make(chan struct{}, 1),
			release: map[string]chan struct{}{"1": make(chan struct{})},
			bodies:  map[string][]byte{"1": []byte(`{"items":[],"page":1,"size":10}`)},
		}
		if fail {
			g.err = errors.New("boom")
		}
		s := New[row](g, Config{Name: "rows", Path: "/rows"})
		assert.False(t, s.Loading())

		done := make(chan error, 1)
		go func() { done <- s.Fetch(context.Background(), 1) }()

		<-g.started
		assert.True(t, s.Loading())
		assert.True(t, s.Snapshot().Loading)

		close(g.release["1"])
		err := <-done
		assert.Equal(t, fail, err != nil)
		assert.False(t, s.Loading())
	}
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	g := &gatedDoer{
		started: make(chan struct{}, 2),
		release: map[string]chan struct{}{"1": make(chan struct{}), "2": make(chan struct{})},
		bodies: map[string][]byte{
			"1": []byte(`{"items":[{"id":1}],"page":1,"size":10,"totalCount":11,"totalPages":2}`),
			"2": []byte(`{"items":[{"id":11}],"page":2,"size":10,"totalCount":11,"totalPages":2}`),
		},
	}
	s := New[row](g, Config{Name: "rows", Path: "/rows"})

	first := make(chan error, 1)
	go func() { first <- s.Fetch(context.Background(), 1) }()
	<-g.started

	second := make(chan error, 1)
	go func() { second <- s.Fetch(context.Background(), 2) }()
	<-g.started

	// newer request resolves first
	close(g.release["2"])
	require.NoError(t, <-second)
	assert.True(t, s.Loading(), "older fetch is still in flight")

	close(g.release["1"])
	assert.ErrorIs(t, <-first, ErrSuperseded)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Page.Page)
	assert.Equal(t, []row{{ID: 11}}, snap.Items)
	assert.False(t, snap.Loading)
}

func TestSnapshotIsACopy(t *testing.T) {
	doer := new(MockDoer)
	s := New[row](doer, Config{Name: "rows", Path: "/rows"})
	doer.On("Do", mock.Anything, http.MethodGet, "/rows", mock.Anything).
		Return([]byte(`{"items":[{"id":1}],"page":1,"size":10,"totalCount":1,"totalPages":1}`), nil).Once()
	require.NoError(t, s.Fetch(context.Background(), 1))
	s.SetFilter("status", "OPEN")

	snap := s.Snapshot()
	snap.Items[0].ID = 99
	snap.Filters["status"] = "CLOSED"

	assert.Equal(t, 1, s.Snapshot().Items[0].ID)
	assert.Equal(t, "OPEN", s.Filter("status"))
}
