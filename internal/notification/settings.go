package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hrportal/internal/kv"
	"hrportal/internal/queue"
)

// SettingsKey is the key the settings are persisted under.
const SettingsKey = "notificationSettings"

// SyncMessageType marks queue messages that push settings to the backend.
const SyncMessageType = "settings.sync"

// DefaultPublishTimeout bounds how long a save waits on a full sync queue.
const DefaultPublishTimeout = 2 * time.Second

// Settings are an employee's notification preferences.
type Settings struct {
	AttendanceEnabled   bool `json:"attendanceEnabled"`
	PayrollEnabled      bool `json:"payrollEnabled"`
	ApprovalEnabled     bool `json:"approvalEnabled"`
	LeaveEnabled        bool `json:"leaveEnabled"`
	EvaluationEnabled   bool `json:"evaluationEnabled"`
	SystemEnabled       bool `json:"systemEnabled"`
	BrowserNotification bool `json:"browserNotification"`
	EmailNotification   bool `json:"emailNotification"`
	SMSNotification     bool `json:"smsNotification"`
}

// DefaultSettings has every category and channel enabled.
func DefaultSettings() Settings {
	return Settings{
		AttendanceEnabled:   true,
		PayrollEnabled:      true,
		ApprovalEnabled:     true,
		LeaveEnabled:        true,
		EvaluationEnabled:   true,
		SystemEnabled:       true,
		BrowserNotification: true,
		EmailNotification:   true,
		SMSNotification:     true,
	}
}

// AllCategoriesEnabled reports whether every category flag is on. Delivery
// channels are not categories.
func (s Settings) AllCategoriesEnabled() bool {
	return s.AttendanceEnabled &&
		s.PayrollEnabled &&
		s.ApprovalEnabled &&
		s.LeaveEnabled &&
		s.EvaluationEnabled &&
		s.SystemEnabled
}

// SetAllCategories turns every category flag on or off.
func (s *Settings) SetAllCategories(enabled bool) {
	s.AttendanceEnabled = enabled
	s.PayrollEnabled = enabled
	s.ApprovalEnabled = enabled
	s.LeaveEnabled = enabled
	s.EvaluationEnabled = enabled
	s.SystemEnabled = enabled
}

// PermissionChecker reports the platform's notification permission.
// supported is false where the platform has no such permission.
type PermissionChecker interface {
	NotificationPermission() (granted, supported bool)
}

// SyncRequest is the queue payload for a backend settings update.
type SyncRequest struct {
	EmployeeID int64    `json:"employeeId"`
	Settings   Settings `json:"settings"`
}

// SettingsStore holds the current settings of one employee.
type SettingsStore struct {
	kv             kv.Store
	publisher      queue.Publisher
	publishTimeout time.Duration
	permission     PermissionChecker
	employeeID     int64
	log            zerolog.Logger

	mu       sync.RWMutex
	settings Settings
	saving   bool
}

// SettingsOption customizes a SettingsStore.
type SettingsOption func(*SettingsStore)

// WithSync publishes a sync message for employeeID on every save.
func WithSync(p queue.Publisher, employeeID int64) SettingsOption {
	return func(s *SettingsStore) {
		s.publisher = p
		s.employeeID = employeeID
	}
}

// WithPublishTimeout overrides DefaultPublishTimeout. Non-positive values are
// ignored.
func WithPublishTimeout(d time.Duration) SettingsOption {
	return func(s *SettingsStore) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithPermissionChecker lets LoadSettings align browserNotification with the
// platform permission.
func WithPermissionChecker(p PermissionChecker) SettingsOption {
	return func(s *SettingsStore) { s.permission = p }
}

// NewSettingsStore creates a store holding the default settings.
func NewSettingsStore(store kv.Store, log zerolog.Logger, opts ...SettingsOption) *SettingsStore {
	s := &SettingsStore{
		kv:             store,
		log:            log.With().Str("store", "notification_settings").Logger(),
		settings:       DefaultSettings(),
		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns a copy of the current settings.
func (s *SettingsStore) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Saving reports whether SaveSettings is running.
func (s *SettingsStore) Saving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saving
}

// AllNotificationsEnabled is the getter half of the "all categories" toggle.
func (s *SettingsStore) AllNotificationsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.AllCategoriesEnabled()
}

// SetAllNotificationsEnabled is the setter half of the "all categories" toggle.
func (s *SettingsStore) SetAllNotificationsEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.SetAllCategories(enabled)
}

// Apply merges a partial JSON object over the current settings. Keys that are
// absent keep their value. On a decode error nothing changes.
func (s *SettingsStore) Apply(patch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged, err := merge(s.settings, patch)
	if err != nil {
		return err
	}
	s.settings = merged
	return nil
}

// ResetSettings restores the defaults in memory.
func (s *SettingsStore) ResetSettings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultSettings()
}

// LoadSettings merges previously saved settings over the current ones. A
// missing or corrupted entry leaves the settings as they are. Only a failing
// key/value backend is reported as an error.
func (s *SettingsStore) LoadSettings(ctx context.Context) error {
	raw, found, err := s.kv.Get(ctx, SettingsKey)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read saved settings")
		return fmt.Errorf("load notification settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if found {
		merged, err := merge(s.settings, []byte(raw))
		if err != nil {
			s.log.Warn().Err(err).Msg("ignoring corrupted saved settings")
		} else {
			s.settings = merged
		}
	}

	if s.permission != nil {
		if granted, supported := s.permission.NotificationPermission(); supported {
			s.settings.BrowserNotification = granted
		}
	}
	return nil
}

// SaveSettings persists the current settings as JSON under SettingsKey and,
// when sync is configured, queues a backend update. The enqueue gives up after
// the publish timeout. A failed enqueue is logged; the local copy is already
// saved at that point.
func (s *SettingsStore) SaveSettings(ctx context.Context) error {
	s.mu.Lock()
	s.saving = true
	current := s.settings
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	b, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode notification settings: %w", err)
	}
	if err := s.kv.Set(ctx, SettingsKey, string(b)); err != nil {
		s.log.Error().Err(err).Msg("failed to save settings")
		return fmt.Errorf("save notification settings: %w", err)
	}

	if s.publisher != nil {
		body, err := json.Marshal(SyncRequest{EmployeeID: s.employeeID, Settings: current})
		if err != nil {
			return fmt.Errorf("encode settings sync: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(pctx, queue.Message{Type: SyncMessageType, Body: body}); err != nil {
			s.log.Warn().Err(err).Int64("employee_id", s.employeeID).Msg("settings sync not queued")
		}
	}
	return nil
}

func merge(current Settings, patch []byte) (Settings, error) {
	next := current
	if err := json.Unmarshal(patch, &next); err != nil {
		return current, fmt.Errorf("decode notification settings: %w", err)
	}
	return next, nil
}
