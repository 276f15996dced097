// Package approval reads the approver's document inbox.
package approval

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"hrportal/internal/apiclient"
	"hrportal/internal/envelope"
	"hrportal/internal/liststore"
	"hrportal/internal/metrics"
)

// InboxPath is the backend endpoint listing documents waiting on the caller.
const InboxPath = "/approval/inbox/documents"

// Inbox tabs understood by the backend.
const (
	TabAll       = "ALL"
	TabPending   = "PENDING"
	TabReference = "REFERENCE"
	TabCompleted = "COMPLETED"
)

// Filter names sent as query parameters.
const (
	FilterTab     = "tab"
	FilterKeyword = "keyword"
)

// Document is one approval document as listed in the inbox.
type Document struct {
	DocumentID     int64  `json:"documentId"`
	DocNo          string `json:"docNo"`
	Title          string `json:"title"`
	TemplateName   string `json:"templateName"`
	DrafterName    string `json:"drafterName"`
	DepartmentName string `json:"departmentName"`
	Status         string `json:"status"`
	CreatedAt      string `json:"createdAt"`
}

// InboxSearchParams selects one page of the inbox.
type InboxSearchParams struct {
	Tab     string
	Keyword string
	Page    int
	Size    int
}

func (p InboxSearchParams) values() url.Values {
	v := url.Values{}
	if p.Tab != "" {
		v.Set(FilterTab, p.Tab)
	}
	if p.Keyword != "" {
		v.Set(FilterKeyword, p.Keyword)
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Size > 0 {
		v.Set("size", strconv.Itoa(p.Size))
	}
	return v
}

// GetInboxDocuments fetches one page of the inbox without holding any state.
func GetInboxDocuments(ctx context.Context, client apiclient.Doer, params InboxSearchParams) (liststore.Page[Document], error) {
	raw, err := apiclient.Get(ctx, client, InboxPath, params.values())
	if err != nil {
		return liststore.Page[Document]{}, fmt.Errorf("get inbox documents: %w", err)
	}
	page, err := envelope.NormalizeOrBare[liststore.Page[Document]](raw)
	if err != nil {
		return liststore.Page[Document]{}, fmt.Errorf("get inbox documents: %w", err)
	}
	if page.Items == nil {
		page.Items = []Document{}
	}
	return page, nil
}

// InboxStore is the paginated inbox with a tab and a keyword filter.
type InboxStore struct {
	list *liststore.Store[Document]
}

// NewInboxStore creates an inbox store showing every tab.
func NewInboxStore(client apiclient.Doer, pageSize int, log zerolog.Logger, m *metrics.Metrics) *InboxStore {
	return &InboxStore{
		list: liststore.New[Document](client, liststore.Config{
			Name:     "approval_inbox",
			Path:     InboxPath,
			PageSize: pageSize,
			Logger:   log,
			Metrics:  m,
		}),
	}
}

// SetTab selects the inbox tab; "" or TabAll shows everything.
func (s *InboxStore) SetTab(tab string) {
	if tab == TabAll {
		tab = ""
	}
	s.list.SetFilter(FilterTab, tab)
}

// SetKeyword filters by title or document number.
func (s *InboxStore) SetKeyword(keyword string) {
	s.list.SetFilter(FilterKeyword, keyword)
}

func (s *InboxStore) SetPageSize(size int) {
	s.list.SetPageSize(size)
}

// FetchInbox loads the given 1-based page with the current tab and keyword.
func (s *InboxStore) FetchInbox(ctx context.Context, page int) error {
	return s.list.Fetch(ctx, page)
}

func (s *InboxStore) ResetFilters(ctx context.Context) error {
	return s.list.ResetFilters(ctx)
}

func (s *InboxStore) Snapshot() liststore.Snapshot[Document] {
	return s.list.Snapshot()
}

func (s *InboxStore) Loading() bool {
	return s.list.Loading()
}
