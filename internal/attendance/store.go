package attendance

import (
	"context"

	"github.com/rs/zerolog"

	"hrportal/internal/apiclient"
	"hrportal/internal/liststore"
	"hrportal/internal/metrics"
)

// PersonalPath is the backend endpoint for the signed-in employee's records.
const PersonalPath = "/attendance/personal"

// PersonalRecord is one day of the employee's attendance as the backend reports it.
type PersonalRecord struct {
	AttendanceID   int64  `json:"attendanceId"`
	WorkDate       string `json:"workDate"`
	State          string `json:"state"`
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	WorkDuration   int    `json:"workDuration"`
	WorkSystemName string `json:"workSystemName"`
}

// Store holds the paginated personal attendance list.
type Store struct {
	list *liststore.Store[PersonalRecord]
}

// NewStore creates a store that starts empty at page 1.
func NewStore(client apiclient.Doer, pageSize int, log zerolog.Logger, m *metrics.Metrics) *Store {
	return &Store{
		list: liststore.New[PersonalRecord](client, liststore.Config{
			Name:     "attendance_personal",
			Path:     PersonalPath,
			PageSize: pageSize,
			Logger:   log,
			Metrics:  m,
		}),
	}
}

// FetchPersonal loads the given page of personal records.
func (s *Store) FetchPersonal(ctx context.Context, page int) error {
	return s.list.Fetch(ctx, page)
}

// SetPageSize changes the size requested by the next fetch.
func (s *Store) SetPageSize(size int) {
	s.list.SetPageSize(size)
}

// Snapshot returns the current list and pagination state.
func (s *Store) Snapshot() liststore.Snapshot[PersonalRecord] {
	return s.list.Snapshot()
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	return s.list.Loading()
}
