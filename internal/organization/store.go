package organization

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"hrportal/internal/apiclient"
	"hrportal/internal/envelope"
)

const chartPath = "/organization/chart"

// ChartLoadFailedMessage is shown to the user when the chart cannot be loaded.
const ChartLoadFailedMessage = "Failed to load the organization chart."

// Member is an employee placed on the chart.
type Member struct {
	EmployeeID   int64  `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	GradeName    string `json:"gradeName,omitempty"`
	JobTitleName string `json:"jobTitleName,omitempty"`
}

// Node is a department with its members and sub-departments.
type Node struct {
	DepartmentID   int64    `json:"departmentId"`
	DepartmentName string   `json:"departmentName"`
	ParentID       *int64   `json:"parentDepartmentId,omitempty"`
	Members        []Member `json:"employees,omitempty"`
	Children       []Node   `json:"children,omitempty"`
}

// DepartmentHistory is one department change of an employee.
type DepartmentHistory struct {
	HistoryID      int64  `json:"historyId"`
	EmployeeID     int64  `json:"employeeId"`
	DepartmentName string `json:"departmentName"`
	ChangeType     string `json:"changeType"`
	ChangedAt      string `json:"changedAt"`
}

// GradeHistory is one grade change of an employee.
type GradeHistory struct {
	HistoryID  int64  `json:"historyId"`
	EmployeeID int64  `json:"employeeId"`
	GradeName  string `json:"gradeName"`
	ChangeType string `json:"changeType"`
	ChangedAt  string `json:"changedAt"`
}

// State is a copy of what the store currently holds.
type State struct {
	Chart       []Node              `json:"organizationChart"`
	DeptHistory []DepartmentHistory `json:"deptHistoryList"`
	GradeHist   []GradeHistory      `json:"gradeHistoryList"`
	Loading     bool                `json:"isLoading"`
	LastError   string              `json:"error,omitempty"`
}

// Store holds the organization chart and an employee's history lists.
//
// A response of the wrong shape empties the affected list; a transport
// failure leaves it as it was. Both are returned to the caller.
type Store struct {
	client apiclient.Doer
	log    zerolog.Logger

	mu    sync.RWMutex
	state State
}

// NewStore creates an empty organization store.
func NewStore(client apiclient.Doer, log zerolog.Logger) *Store {
	return &Store{
		client: client,
		log:    log.With().Str("store", "organization").Logger(),
		state: State{
			Chart:       []Node{},
			DeptHistory: []DepartmentHistory{},
			GradeHist:   []GradeHistory{},
		},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Chart = slices.Clone(s.state.Chart)
	st.DeptHistory = slices.Clone(s.state.DeptHistory)
	st.GradeHist = slices.Clone(s.state.GradeHist)
	return st
}

// LoadOrganizationChart fetches the whole chart. The backend answers either
// with an envelope or with a bare array.
func (s *Store) LoadOrganizationChart(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	s.state.LastError = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state.Loading = false
		s.mu.Unlock()
	}()

	raw, err := s.client.Do(ctx, http.MethodGet, chartPath, apiclient.Request{})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load organization chart")
		s.mu.Lock()
		s.state.LastError = ChartLoadFailedMessage
		s.mu.Unlock()
		return fmt.Errorf("load organization chart: %w", err)
	}

	chart, err := envelope.Normalize[[]Node](raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.log.Error().Err(err).Msg("unexpected organization chart response")
		s.state.Chart = []Node{}
		s.state.LastError = ChartLoadFailedMessage
		return fmt.Errorf("load organization chart: %w", err)
	}
	if chart == nil {
		chart = []Node{}
	}
	s.state.Chart = chart
	return nil
}

// LoadDepartmentHistory fetches the department changes of one employee.
func (s *Store) LoadDepartmentHistory(ctx context.Context, employeeID int64) error {
	list, err := loadHistory[DepartmentHistory](ctx, s, employeeID, "department-history")
	s.mu.Lock()
	defer s.mu.Unlock()
	if list != nil {
		s.state.DeptHistory = list
	}
	return err
}

// LoadGradeHistory fetches the grade changes of one employee.
func (s *Store) LoadGradeHistory(ctx context.Context, employeeID int64) error {
	list, err := loadHistory[GradeHistory](ctx, s, employeeID, "grade-history")
	s.mu.Lock()
	defer s.mu.Unlock()
	if list != nil {
		s.state.GradeHist = list
	}
	return err
}

// loadHistory returns nil when the held list must stay untouched, and an empty
// list when the response had the wrong shape.
func loadHistory[T any](ctx context.Context, s *Store, employeeID int64, kind string) ([]T, error) {
	path := fmt.Sprintf("/organization/employees/%d/%s", employeeID, kind)
	raw, err := s.client.Do(ctx, http.MethodGet, path, apiclient.Request{Route: "/organization/employees/:id/" + kind})
	if err != nil {
		s.log.Error().Err(err).Int64("employee_id", employeeID).Str("kind", kind).Msg("failed to load history")
		return nil, fmt.Errorf("load %s for employee %d: %w", kind, employeeID, err)
	}

	list, err := envelope.Normalize[[]T](raw)
	var envErr *envelope.Error
	if errors.Is(err, envelope.ErrUnexpectedShape) || errors.As(err, &envErr) {
		s.log.Error().Err(err).Int64("employee_id", employeeID).Str("kind", kind).Msg("unexpected history response")
		return []T{}, fmt.Errorf("load %s for employee %d: %w", kind, employeeID, err)
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}
