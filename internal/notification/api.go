package notification

import (
	"context"
	"fmt"
	"net/http"

	"hrportal/internal/apiclient"
	"hrportal/internal/envelope"
)

// Notification is one message in an employee's notification inbox.
type Notification struct {
	NotificationID int64   `json:"notificationId"`
	EmployeeID     int64   `json:"employeeId"`
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	Message        string  `json:"message"`
	Link           string  `json:"link,omitempty"`
	IsRead         bool    `json:"isRead"`
	CreatedAt      string  `json:"createdAt"`
	ReadAt         *string `json:"readAt,omitempty"`
}

// API wraps the backend notification endpoints.
type API struct {
	client apiclient.Doer
}

// NewAPI creates the notification API wrapper.
func NewAPI(client apiclient.Doer) *API {
	return &API{client: client}
}

// GetNotifications lists the employee's live notifications.
func (a *API) GetNotifications(ctx context.Context, employeeID int64) ([]Notification, error) {
	return a.list(ctx, fmt.Sprintf("/notifications/%d", employeeID), "/notifications/:employeeId")
}

// GetDeletedNotifications lists the employee's soft-deleted notifications.
func (a *API) GetDeletedNotifications(ctx context.Context, employeeID int64) ([]Notification, error) {
	return a.list(ctx, fmt.Sprintf("/notifications/%d/deleted", employeeID), "/notifications/:employeeId/deleted")
}

// GetUnreadCount returns how many notifications the employee has not read.
func (a *API) GetUnreadCount(ctx context.Context, employeeID int64) (int, error) {
	raw, err := a.client.Do(ctx, http.MethodGet, fmt.Sprintf("/notifications/%d/unread-count", employeeID),
		apiclient.Request{Route: "/notifications/:employeeId/unread-count"})
	if err != nil {
		return 0, err
	}
	return envelope.Normalize[int](raw)
}

// MarkAsRead marks one notification read.
func (a *API) MarkAsRead(ctx context.Context, notificationID int64) error {
	return a.patch(ctx, fmt.Sprintf("/notifications/%d/read", notificationID), "/notifications/:id/read")
}

// MarkAllAsRead marks every notification of the employee read.
func (a *API) MarkAllAsRead(ctx context.Context, employeeID int64) error {
	return a.patch(ctx, fmt.Sprintf("/notifications/%d/read-all", employeeID), "/notifications/:employeeId/read-all")
}

// SoftDelete moves a notification to the deleted list.
func (a *API) SoftDelete(ctx context.Context, notificationID int64) error {
	return a.patch(ctx, fmt.Sprintf("/notifications/%d/delete", notificationID), "/notifications/:id/delete")
}

// Restore brings a soft-deleted notification back.
func (a *API) Restore(ctx context.Context, notificationID int64) error {
	return a.patch(ctx, fmt.Sprintf("/notifications/%d/restore", notificationID), "/notifications/:id/restore")
}

// HardDelete removes a notification permanently.
func (a *API) HardDelete(ctx context.Context, notificationID int64) error {
	_, err := a.client.Do(ctx, http.MethodDelete, fmt.Sprintf("/notifications/%d", notificationID),
		apiclient.Request{Route: "/notifications/:id"})
	return err
}

// UpdateSettings stores the employee's notification preferences on the backend.
func (a *API) UpdateSettings(ctx context.Context, employeeID int64, settings Settings) error {
	_, err := a.client.Do(ctx, http.MethodPut, fmt.Sprintf("/notifications/settings/%d", employeeID),
		apiclient.Request{Body: settings, Route: "/notifications/settings/:employeeId"})
	return err
}

func (a *API) list(ctx context.Context, path, route string) ([]Notification, error) {
	raw, err := a.client.Do(ctx, http.MethodGet, path, apiclient.Request{Route: route})
	if err != nil {
		return nil, err
	}
	out, err := envelope.Normalize[[]Notification](raw)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Notification{}
	}
	return out, nil
}

func (a *API) patch(ctx context.Context, path, route string) error {
	_, err := a.client.Do(ctx, http.MethodPatch, path, apiclient.Request{Route: route})
	return err
}
