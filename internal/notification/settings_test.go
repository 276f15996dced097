package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hrportal/internal/kv"
	"hrportal/internal/queue"
)

type MockKV struct {
	mock.Mock
}

func (m *MockKV) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockKV) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg queue.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type permission struct{ granted, supported bool }

func (p permission) NotificationPermission() (bool, bool) { return p.granted, p.supported }

func TestSaveSettingsWritesJSON(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s := NewSettingsStore(store, zerolog.Nop())
	require.NoError(t, s.Apply([]byte(`{"payrollEnabled":false}`)))

	require.NoError(t, s.SaveSettings(ctx))

	want, err := json.Marshal(s.Settings())
	require.NoError(t, err)
	got, found, err := store.Get(ctx, SettingsKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, string(want), got)
	assert.False(t, s.Saving())
}

func TestLoadSettingsWithoutSaveKeepsDefaults(t *testing.T) {
	s := NewSettingsStore(kv.NewMemory(), zerolog.Nop())
	require.NoError(t, s.LoadSettings(context.Background()))
	assert.Equal(t, DefaultSettings(), s.Settings())
}

func TestLoadSettingsMergesPartial(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, SettingsKey, `{"smsNotification":false,"unknownField":1}`))

	s := NewSettingsStore(store, zerolog.Nop())
	require.NoError(t, s.LoadSettings(ctx))

	want := DefaultSettings()
	want.SMSNotification = false
	assert.Equal(t, want, s.Settings())
}

func TestLoadSettingsIgnoresCorruptedEntry(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, SettingsKey, `{"payrollEnabled":fal`))

	s := NewSettingsStore(store, zerolog.Nop())
	require.NoError(t, s.LoadSettings(ctx))
	assert.Equal(t, DefaultSettings(), s.Settings())
}

func TestLoadSettingsBackendError(t *testing.T) {
	m := new(MockKV)
	m.On("Get", mock.Anything, SettingsKey).Return("", false, errors.New("redis down"))

	s := NewSettingsStore(m, zerolog.Nop())
	err := s.LoadSettings(context.Background())
	assert.ErrorContains(t, err, "redis down")
	assert.Equal(t, DefaultSettings(), s.Settings())
}

func TestLoadSettingsAppliesPermission(t *testing.T) {
	tests := []struct {
		name string
		perm permission
		want bool
	}{
		{name: "denied", perm: permission{granted: false, supported: true}, want: false},
		{name: "granted", perm: permission{granted: true, supported: true}, want: true},
		{name: "unsupported keeps value", perm: permission{granted: false, supported: false}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSettingsStore(kv.NewMemory(), zerolog.Nop(), WithPermissionChecker(tt.perm))
			require.NoError(t, s.LoadSettings(context.Background()))
			assert.Equal(t, tt.want, s.Settings().BrowserNotification)
		})
	}
}

func TestAllNotificationsEnabledAccessors(t *testing.T) {
	s := NewSettingsStore(kv.NewMemory(), zerolog.Nop())
	assert.True(t, s.AllNotificationsEnabled())

	require.NoError(t, s.Apply([]byte(`{"leaveEnabled":false}`)))
	assert.False(t, s.AllNotificationsEnabled())

	s.SetAllNotificationsEnabled(false)
	got := s.Settings()
	assert.False(t, got.AttendanceEnabled || got.PayrollEnabled || got.ApprovalEnabled ||
		got.LeaveEnabled || got.EvaluationEnabled || got.SystemEnabled)
	// channels are untouched by the category toggle
	assert.True(t, got.BrowserNotification && got.EmailNotification && got.SMSNotification)

	s.SetAllNotificationsEnabled(true)
	assert.True(t, s.AllNotificationsEnabled())
}

func TestResetSettings(t *testing.T) {
	s := NewSettingsStore(kv.NewMemory(), zerolog.Nop())
	s.SetAllNotificationsEnabled(false)
	s.ResetSettings()
	assert.Equal(t, DefaultSettings(), s.Settings())
}

func TestApplyRejectsInvalidJSON(t *testing.T) {
	s := NewSettingsStore(kv.NewMemory(), zerolog.Nop())
	assert.Error(t, s.Apply([]byte(`[1,2]`)))
	assert.Equal(t, DefaultSettings(), s.Settings())
}

func TestSaveSettingsFailure(t *testing.T) {
	m := new(MockKV)
	m.On("Set", mock.Anything, SettingsKey, mock.Anything).Return(errors.New("read only"))

	s := NewSettingsStore(m, zerolog.Nop())
	err := s.SaveSettings(context.Background())
	assert.ErrorContains(t, err, "read only")
	assert.False(t, s.Saving())
}

func TestSaveSettingsQueuesSync(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(msg queue.Message) bool {
		var req SyncRequest
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			return false
		}
		return msg.Type == SyncMessageType && req.EmployeeID == 42 && !req.Settings.PayrollEnabled
	})).Return(nil).Once()

	s := NewSettingsStore(kv.NewMemory(), zerolog.Nop(), WithSync(pub, 42))
	require.NoError(t, s.Apply([]byte(`{"payrollEnabled":false}`)))
	require.NoError(t, s.SaveSettings(context.Background()))
	pub.AssertExpectations(t)
}

func TestSaveSettingsSyncFailureIsNotFatal(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("queue full"))

	store := kv.NewMemory()
	s := NewSettingsStore(store, zerolog.Nop(), WithSync(pub, 1))
	require.NoError(t, s.SaveSettings(context.Background()))

	_, found, _ := store.Get(context.Background(), SettingsKey)
	assert.True(t, found)
}

func TestSaveSettingsDoesNotWaitOnFullQueue(t *testing.T) {
	q := queue.NewInMemory(1)
	require.NoError(t, q.Publish(context.Background(), queue.Message{Type: SyncMessageType}))

	store := kv.NewMemory()
	s := NewSettingsStore(store, zerolog.Nop(), WithSync(q, 3), WithPublishTimeout(20*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- s.SaveSettings(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SaveSettings blocked on a full sync queue")
	}
	assert.False(t, s.Saving())
	_, found, _ := store.Get(context.Background(), SettingsKey)
	assert.True(t, found)
}
