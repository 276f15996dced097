// Package worksystem manages the work-system templates shown in the
// attendance settings tab.
package worksystem

import (
	"context"
	"fmt"

	"hrportal/internal/apiclient"
	"hrportal/internal/envelope"
)

// TemplatesPath is the backend endpoint for work-system templates.
const TemplatesPath = "/settings/attendance/work-system-templates"

// Template is a stored work-system template. Times are "HH:mm:ss".
type Template struct {
	WorkSystemTemplateID int64  `json:"workSystemTemplateId"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime"`
	BreakMinMinutes      int    `json:"breakMinMinutes"`
	Reason               string `json:"reason"`
	WorkSystemTypeID     int64  `json:"workSystemTypeId"`
}

// UpsertRequest creates a template when WorkSystemTemplateID is nil and
// updates the existing one otherwise.
type UpsertRequest struct {
	WorkSystemTemplateID *int64 `json:"workSystemTemplateId"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime"`
	BreakMinMinutes      int    `json:"breakMinMinutes"`
	Reason               string `json:"reason"`
	WorkSystemTypeID     int64  `json:"workSystemTypeId"`
}

type API struct {
	client apiclient.Doer
}

func NewAPI(client apiclient.Doer) *API {
	return &API{client: client}
}

// ListWorkSystemTemplates returns every template, never nil.
func (a *API) ListWorkSystemTemplates(ctx context.Context) ([]Template, error) {
	raw, err := apiclient.Get(ctx, a.client, TemplatesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list work-system templates: %w", err)
	}
	list, err := envelope.Normalize[[]Template](raw)
	if err != nil {
		return nil, fmt.Errorf("list work-system templates: %w", err)
	}
	if list == nil {
		list = []Template{}
	}
	return list, nil
}

// UpsertWorkSystemTemplates saves the whole set in one PUT.
func (a *API) UpsertWorkSystemTemplates(ctx context.Context, templates []UpsertRequest) error {
	if templates == nil {
		templates = []UpsertRequest{}
	}
	raw, err := apiclient.Put(ctx, a.client, TemplatesPath, templates)
	if err != nil {
		return fmt.Errorf("upsert work-system templates: %w", err)
	}
	if err := envelope.Check(raw); err != nil {
		return fmt.Errorf("upsert work-system templates: %w", err)
	}
	return nil
}
