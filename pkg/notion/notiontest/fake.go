// Package notiontest provides an in-memory record store for tests.
package notiontest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/leavesync/pkg/notion"
)

// Update is one recorded UpdatePage call.
type Update struct {
	PageID     string
	Properties map[string]notion.PropertyValue
}

// Store keeps database pages in memory and evaluates equality filters.
type Store struct {
	mu         sync.Mutex
	dbs        map[string][]*notion.Page
	Updates    []Update
	Queries    []notion.QueryRequest
	QueryErr   map[string]error
	UpdateErr  map[string]error
	nextPageID int
}

func New() *Store {
	return &Store{
		dbs:       make(map[string][]*notion.Page),
		QueryErr:  make(map[string]error),
		UpdateErr: make(map[string]error),
	}
}

// Add appends a page to a database and returns its id. An empty id is
// replaced by a generated one.
func (s *Store) Add(dbID, id string, props map[string]notion.PropertyValue) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.nextPageID++
		id = "page-" + strconv.Itoa(s.nextPageID)
	}
	s.dbs[dbID] = append(s.dbs[dbID], &notion.Page{Object: "page", ID: id, CreatedTime: time.Now(), Properties: props})
	return id
}

// Page returns a copy of the stored page, or nil.
func (s *Store) Page(id string) *notion.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.find(id); p != nil {
		cp := *p
		cp.Properties = make(map[string]notion.PropertyValue, len(p.Properties))
		for k, v := range p.Properties {
			cp.Properties[k] = v
		}
		return &cp
	}
	return nil
}

// UpdatesFor returns the updates sent for one page, in order.
func (s *Store) UpdatesFor(id string) []Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Update
	for _, u := range s.Updates {
		if u.PageID == id {
			out = append(out, u)
		}
	}
	return out
}

func (s *Store) QueryAll(ctx context.Context, databaseID string, req notion.QueryRequest, maxPages int) ([]notion.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Queries = append(s.Queries, req)
	if err := s.QueryErr[databaseID]; err != nil {
		return nil, err
	}

	var matched []notion.Page
	for _, p := range s.dbs[databaseID] {
		if req.Filter == nil || match(*req.Filter, p) {
			matched = append(matched, *p)
		}
	}

	size := req.PageSize
	if size <= 0 || size > notion.MaxPageSize {
		size = notion.MaxPageSize
	}
	limit := len(matched)
	if maxPages > 0 && maxPages*size < limit {
		limit = maxPages * size
	}
	return matched[:limit], nil
}

func (s *Store) UpdatePage(ctx context.Context, pageID string, props map[string]notion.PropertyValue) (*notion.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.UpdateErr[pageID]; err != nil {
		return nil, err
	}
	p := s.find(pageID)
	if p == nil {
		return nil, fmt.Errorf("page %s not found", pageID)
	}
	if p.Properties == nil {
		p.Properties = make(map[string]notion.PropertyValue)
	}
	for k, v := range props {
		p.Properties[k] = v
	}
	s.Updates = append(s.Updates, Update{PageID: pageID, Properties: props})
	cp := *p
	return &cp, nil
}

func (s *Store) find(id string) *notion.Page {
	for _, pages := range s.dbs {
		for _, p := range pages {
			if p.ID == id {
				return p
			}
		}
	}
	return nil
}

func match(f notion.Filter, p *notion.Page) bool {
	if len(f.And) > 0 {
		for _, sub := range f.And {
			if !match(sub, p) {
				return false
			}
		}
		return true
	}
	if len(f.Or) > 0 {
		for _, sub := range f.Or {
			if match(sub, p) {
				return true
			}
		}
		return false
	}

	prop := p.Properties[f.Property]
	if f.Number != nil && f.Number.Equals != nil {
		v, ok := prop.Float()
		return ok && v == *f.Number.Equals
	}
	for _, c := range []*notion.TextCondition{f.Title, f.RichText, f.Select, f.Status} {
		if c == nil {
			continue
		}
		text := strings.TrimSpace(prop.Text())
		switch {
		case c.IsEmpty:
			return text == ""
		case c.IsNotEmpty:
			return text != ""
		default:
			return text == c.Equals
		}
	}
	return true
}

// Props is a small builder for page properties.
type Props map[string]notion.PropertyValue

func (p Props) Text(name, v string) Props {
	p[name] = notion.RichTextValue(v)
	return p
}

func (p Props) Title(name, v string) Props {
	p[name] = notion.TitleValue(v)
	return p
}

func (p Props) Number(name string, v float64) Props {
	p[name] = notion.NumberValue(v)
	return p
}

func (p Props) Select(name, v string) Props {
	p[name] = notion.SelectValue(v)
	return p
}

func (p Props) Email(name, v string) Props {
	p[name] = notion.PropertyValue{Type: "email", Email: &v}
	return p
}

func (p Props) Date(name, start string) Props {
	p[name] = notion.PropertyValue{Type: "date", Date: &notion.DateValue{Start: start}}
	return p
}
