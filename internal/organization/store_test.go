package organization

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hrportal/internal/apiclient"
	"hrportal/internal/envelope"
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

func TestLoadOrganizationChart(t *testing.T) {
	bodies := map[string]string{
		"envelope": `{"success":true,"data":[{"departmentId":1,"departmentName":"HQ","children":[{"departmentId":2,"departmentName":"HR"}]}]}`,
		"bare":     `[{"departmentId":1,"departmentName":"HQ","children":[{"departmentId":2,"departmentName":"HR"}]}]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			doer := new(MockDoer)
			doer.On("Do", mock.Anything, http.MethodGet, chartPath, mock.Anything).Return([]byte(body), nil).Once()

			s := NewStore(doer, zerolog.Nop())
			require.NoError(t, s.LoadOrganizationChart(context.Background()))

			st := s.Snapshot()
			require.Len(t, st.Chart, 1)
			assert.Equal(t, "HQ", st.Chart[0].DepartmentName)
			assert.Equal(t, "HR", st.Chart[0].Children[0].DepartmentName)
			assert.False(t, st.Loading)
			assert.Empty(t, st.LastError)
		})
	}
}

func TestLoadOrganizationChartFailures(t *testing.T) {
	t.Run("transport error keeps chart", func(t *testing.T) {
		doer := new(MockDoer)
		doer.On("Do", mock.Anything, http.MethodGet, chartPath, mock.Anything).Return([]byte(`[{"departmentId":1}]`), nil).Once()
		doer.On("Do", mock.Anything, http.MethodGet, chartPath, mock.Anything).Return(nil, errors.New("timeout")).Once()

		s := NewStore(doer, zerolog.Nop())
		require.NoError(t, s.LoadOrganizationChart(context.Background()))
		assert.Error(t, s.LoadOrganizationChart(context.Background()))

		st := s.Snapshot()
		assert.Len(t, st.Chart, 1)
		assert.Equal(t, ChartLoadFailedMessage, st.LastError)
		assert.False(t, st.Loading)
	})

	t.Run("unknown shape empties chart", func(t *testing.T) {
		doer := new(MockDoer)
		doer.On("Do", mock.Anything, http.MethodGet, chartPath, mock.Anything).Return([]byte(`{"success":true}`), nil).Once()

		s := NewStore(doer, zerolog.Nop())
		err := s.LoadOrganizationChart(context.Background())
		assert.ErrorIs(t, err, envelope.ErrUnexpectedShape)
		assert.Empty(t, s.Snapshot().Chart)
		assert.NotNil(t, s.Snapshot().Chart)
	})
}

func TestLoadDepartmentHistory(t *testing.T) {
	doer := new(MockDoer)
	doer.On("Do", mock.Anything, http.MethodGet, "/organization/employees/7/department-history", mock.Anything).
		Return([]byte(`{"success":true,"data":[{"historyId":1,"employeeId":7,"departmentName":"Sales"}]}`), nil).Once()

	s := NewStore(doer, zerolog.Nop())
	require.NoError(t, s.LoadDepartmentHistory(context.Background(), 7))
	assert.Equal(t, []DepartmentHistory{{HistoryID: 1, EmployeeID: 7, DepartmentName: "Sales"}}, s.Snapshot().DeptHistory)
}

func TestLoadGradeHistoryFailures(t *testing.T) {
	doer := new(MockDoer)
	doer.On("Do", mock.Anything, http.MethodGet, "/organization/employees/7/grade-history", mock.Anything).
		Return([]byte(`{"success":true,"data":[{"historyId":3,"gradeName":"Senior"}]}`), nil).Once()
	doer.On("Do", mock.Anything, http.MethodGet, "/organization/employees/7/grade-history", mock.Anything).
		Return(nil, errors.New("reset by peer")).Once()
	doer.On("Do", mock.Anything, http.MethodGet, "/organization/employees/7/grade-history", mock.Anything).
		Return([]byte(`{"success":false,"message":"forbidden"}`), nil).Once()

	s := NewStore(doer, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, s.LoadGradeHistory(ctx, 7))
	assert.Len(t, s.Snapshot().GradeHist, 1)

	assert.Error(t, s.LoadGradeHistory(ctx, 7))
	assert.Len(t, s.Snapshot().GradeHist, 1, "transport errors keep the list")

	err := s.LoadGradeHistory(ctx, 7)
	var envErr *envelope.Error
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, "forbidden", envErr.Message)
	assert.Empty(t, s.Snapshot().GradeHist)
}
