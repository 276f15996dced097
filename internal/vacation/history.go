package vacation

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"hrportal/internal/apiclient"
	"hrportal/internal/liststore"
	"hrportal/internal/metrics"
)

// HistoryPath is the backend endpoint for vacation history.
const HistoryPath = "/vacation/history"

// Query parameter names understood by the history endpoint.
const (
	FilterStartDate  = "startDate"
	FilterEndDate    = "endDate"
	FilterEmployeeID = "employeeId"
)

// HistoryRecord is one vacation taken, as the backend reports it.
type HistoryRecord struct {
	StartDate        string `json:"startDate"`
	EndDate          string `json:"endDate"`
	VacationTypeName string `json:"vacationTypeName"`
	Reason           string `json:"reason"`
	ApprovalStatus   string `json:"approvalStatus"`
}

// HistoryStore is the paginated vacation history list with a date range and
// employee filter.
type HistoryStore struct {
	list *liststore.Store[HistoryRecord]
}

// NewHistoryStore creates a store that starts empty at page 1.
func NewHistoryStore(client apiclient.Doer, pageSize int, log zerolog.Logger, m *metrics.Metrics) *HistoryStore {
	return &HistoryStore{
		list: liststore.New[HistoryRecord](client, liststore.Config{
			Name:     "vacation_history",
			Path:     HistoryPath,
			PageSize: pageSize,
			Logger:   log,
			Metrics:  m,
		}),
	}
}

// SetFilterDates sets the period filter. Dates are yyyy-MM-dd and are not
// checked here; an empty string clears that bound.
func (s *HistoryStore) SetFilterDates(start, end string) {
	s.list.SetFilter(FilterStartDate, start)
	s.list.SetFilter(FilterEndDate, end)
}

// SetEmployeeID narrows the history to one employee; nil clears the filter.
func (s *HistoryStore) SetEmployeeID(id *int64) {
	if id == nil {
		s.list.SetFilter(FilterEmployeeID, "")
		return
	}
	s.list.SetFilter(FilterEmployeeID, strconv.FormatInt(*id, 10))
}

// SetPageSize changes the size requested by the next fetch.
func (s *HistoryStore) SetPageSize(size int) {
	s.list.SetPageSize(size)
}

// FetchVacationHistory loads the given 1-based page with the current filters.
func (s *HistoryStore) FetchVacationHistory(ctx context.Context, page int) error {
	return s.list.Fetch(ctx, page)
}

// ResetFilters clears every filter and reloads page 1.
func (s *HistoryStore) ResetFilters(ctx context.Context) error {
	return s.list.ResetFilters(ctx)
}

// Snapshot returns the current list, pagination and filter state.
func (s *HistoryStore) Snapshot() liststore.Snapshot[HistoryRecord] {
	return s.list.Snapshot()
}

// Loading reports whether a fetch is in flight.
func (s *HistoryStore) Loading() bool {
	return s.list.Loading()
}
