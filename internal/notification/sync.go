package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"hrportal/internal/queue"
)

// SettingsUpdater is the backend call a sync message turns into.
type SettingsUpdater interface {
	UpdateSettings(ctx context.Context, employeeID int64, settings Settings) error
}

// HandleSync applies one queued settings sync message. Messages of other
// types are ignored.
func HandleSync(ctx context.Context, api SettingsUpdater, msg queue.Message) error {
	if msg.Type != SyncMessageType {
		return nil
	}
	var req SyncRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		return fmt.Errorf("decode settings sync: %w", err)
	}
	if req.EmployeeID <= 0 {
		return fmt.Errorf("settings sync without employee id")
	}
	return api.UpdateSettings(ctx, req.EmployeeID, req.Settings)
}

// RunSync consumes q until ctx is done, applying every sync message. Failed
// messages are logged and dropped.
func RunSync(ctx context.Context, q queue.Queue, api SettingsUpdater, log zerolog.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("consume settings sync: %w", err)
	}
	pending, err := q.Pending(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("settings sync backlog unknown")
	}
	log.Info().Int64("pending", pending).Msg("settings sync started")
	for msg := range messages {
		if err := HandleSync(ctx, api, msg); err != nil {
			log.Error().Err(err).Str("type", msg.Type).Msg("settings sync failed")
			continue
		}
		if msg.Type == SyncMessageType {
			log.Debug().Msg("settings synced")
		}
	}
	log.Info().Msg("settings sync stopped")
	return nil
}
