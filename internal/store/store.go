// Package store maps vacation and employee database pages to leave records
// using the property names from configuration.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/garnizeh/leavesync/internal/config"
	"github.com/garnizeh/leavesync/internal/leave"
	"github.com/garnizeh/leavesync/pkg/notion"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("record not found")

// RecordClient is the subset of the record store API the adapters use.
type RecordClient interface {
	QueryAll(ctx context.Context, databaseID string, req notion.QueryRequest, maxPages int) ([]notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, props map[string]notion.PropertyValue) (*notion.Page, error)
}

// Requests reads and patches the vacation database.
type Requests struct {
	client    RecordClient
	dbID      string
	fields    config.RequestFields
	batchSize int
	maxPages  int
	logger    *slog.Logger
}

func NewRequests(c RecordClient, cfg config.NotionConfig, syncCfg config.SyncConfig, logger *slog.Logger) *Requests {
	if logger == nil {
		logger = slog.Default()
	}
	return &Requests{
		client:    c,
		dbID:      cfg.VacationDB,
		fields:    cfg.RequestFields,
		batchSize: syncCfg.BatchSize,
		maxPages:  syncCfg.MaxPages,
		logger:    logger,
	}
}

// ListPending returns the newest requests, batchSize per page, reading at
// most maxPages pages (0 reads every page).
func (s *Requests) ListPending(ctx context.Context) ([]leave.VacationRequest, error) {
	req := notion.QueryRequest{
		PageSize: s.batchSize,
		Sorts:    []notion.Sort{{Timestamp: "created_time", Direction: "descending"}},
	}
	pages, err := s.client.QueryAll(ctx, s.dbID, req, s.maxPages)
	if err != nil {
		return nil, fmt.Errorf("query vacation requests: %w", err)
	}
	out := make([]leave.VacationRequest, 0, len(pages))
	for _, p := range pages {
		out = append(out, s.decode(p))
	}
	return out, nil
}

// ListApprovedByNationalID returns every approved request filed under nid.
// Status is matched after decoding so label casing in the database does not
// matter.
func (s *Requests) ListApprovedByNationalID(ctx context.Context, nid string) ([]leave.VacationRequest, error) {
	if strings.TrimSpace(nid) == "" {
		return nil, fmt.Errorf("national id is required")
	}
	f, err := notion.Equals(s.fields.NationalID, s.fields.NationalIDType, nid)
	if err != nil {
		return nil, err
	}
	pages, err := s.client.QueryAll(ctx, s.dbID, notion.QueryRequest{Filter: &f, PageSize: notion.MaxPageSize}, 0)
	if err != nil {
		return nil, fmt.Errorf("query requests for %s: %w", nid, err)
	}
	var out []leave.VacationRequest
	for _, p := range pages {
		r := s.decode(p)
		if r.Status == leave.StatusApproved {
			out = append(out, r)
		}
	}
	return out, nil
}

// Update writes the non-nil fields of patch. An empty patch is a no-op.
func (s *Requests) Update(ctx context.Context, id string, patch leave.RequestPatch) error {
	if patch.Empty() {
		return nil
	}
	props := make(map[string]notion.PropertyValue, 4)
	if patch.Status != nil {
		props[s.fields.Status] = notion.OptionValue(s.fields.StatusType, string(*patch.Status))
	}
	if patch.EmployeeName != nil {
		props[s.fields.EmployeeName] = notion.RichTextValue(*patch.EmployeeName)
	}
	if patch.RequestedDays != nil {
		props[s.fields.RequestedDays] = notion.NumberValue(*patch.RequestedDays)
	}
	if patch.RemainingBalance != nil {
		props[s.fields.RemainingBalance] = notion.NumberValue(*patch.RemainingBalance)
	}
	if _, err := s.client.UpdatePage(ctx, id, props); err != nil {
		return fmt.Errorf("update request %s: %w", id, err)
	}
	return nil
}

// MarkNotified stores status in the request's email marker.
func (s *Requests) MarkNotified(ctx context.Context, id string, status leave.Status) error {
	props := map[string]notion.PropertyValue{
		s.fields.EmailSent: notion.RichTextValue(string(status)),
	}
	if _, err := s.client.UpdatePage(ctx, id, props); err != nil {
		return fmt.Errorf("mark request %s notified: %w", id, err)
	}
	return nil
}

func (s *Requests) decode(p notion.Page) leave.VacationRequest {
	f := s.fields
	props := p.Properties
	r := leave.VacationRequest{
		ID:              p.ID,
		NationalID:      strings.TrimSpace(props[f.NationalID].Text()),
		Status:          leave.ParseStatus(props[f.Status].Text()),
		EmailSentMarker: strings.TrimSpace(props[f.EmailSent].Text()),
		EmailOverride:   strings.TrimSpace(props[f.Email].Text()),
		EmployeeName:    strings.TrimSpace(props[f.EmployeeName].Text()),
	}

	start := props[f.StartDate]
	if t, ok := start.Time(); ok {
		r.Start = &t
	}
	if t, ok := props[f.EndDate].Time(); ok {
		r.End = &t
	} else if start.Date != nil && start.Date.End != nil {
		// a single date-range property carries both ends
		if t, ok := notion.ParseDate(*start.Date.End); ok {
			r.End = &t
		}
	}
	if v, ok := props[f.RequestedDays].Float(); ok {
		r.RequestedDays = &v
	}
	if v, ok := props[f.RemainingBalance].Float(); ok {
		r.RemainingBalance = &v
	}
	return r
}

// Employees reads and patches the employees database.
type Employees struct {
	client RecordClient
	dbID   string
	fields config.EmployeeFields
	logger *slog.Logger
}

func NewEmployees(c RecordClient, cfg config.NotionConfig, logger *slog.Logger) *Employees {
	if logger == nil {
		logger = slog.Default()
	}
	return &Employees{client: c, dbID: cfg.EmployeesDB, fields: cfg.EmployeeFields, logger: logger}
}

// FindByNationalID returns the employee filed under nid, or ErrNotFound.
// When several rows match the first one wins.
func (s *Employees) FindByNationalID(ctx context.Context, nid string) (leave.Employee, error) {
	if strings.TrimSpace(nid) == "" {
		return leave.Employee{}, fmt.Errorf("%w: empty national id", ErrNotFound)
	}
	f, err := notion.Equals(s.fields.NationalID, s.fields.NationalIDType, nid)
	if err != nil {
		// a value that is not a number cannot match a number column
		return leave.Employee{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	pages, err := s.client.QueryAll(ctx, s.dbID, notion.QueryRequest{Filter: &f, PageSize: 2}, 1)
	if err != nil {
		return leave.Employee{}, fmt.Errorf("query employee %s: %w", nid, err)
	}
	if len(pages) == 0 {
		return leave.Employee{}, fmt.Errorf("%w: employee with national id %s", ErrNotFound, nid)
	}
	if len(pages) > 1 {
		s.logger.Warn("several employees share a national id", "national_id", nid, "using", pages[0].ID)
	}
	return s.decode(pages[0]), nil
}

func (s *Employees) UpdateRemaining(ctx context.Context, id string, remaining float64) error {
	props := map[string]notion.PropertyValue{
		s.fields.RemainingBalance: notion.NumberValue(remaining),
	}
	if _, err := s.client.UpdatePage(ctx, id, props); err != nil {
		return fmt.Errorf("update employee %s: %w", id, err)
	}
	return nil
}

func (s *Employees) decode(p notion.Page) leave.Employee {
	f := s.fields
	props := p.Properties
	e := leave.Employee{
		ID:         p.ID,
		NationalID: strings.TrimSpace(props[f.NationalID].Text()),
		Name:       strings.TrimSpace(props[f.Name].Text()),
		Email:      strings.TrimSpace(props[f.Email].Text()),
	}
	if v, ok := props[f.LeaveBalance].Float(); ok {
		e.AccruedBalance = &v
	}
	if v, ok := props[f.RemainingBalance].Float(); ok {
		e.RemainingBalance = &v
	}
	return e
}
