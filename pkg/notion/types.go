package notion

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Page is a database row.
type Page struct {
	Object         string                   `json:"object"`
	ID             string                   `json:"id"`
	CreatedTime    time.Time                `json:"created_time"`
	LastEditedTime time.Time                `json:"last_edited_time"`
	Archived       bool                     `json:"archived"`
	Properties     map[string]PropertyValue `json:"properties"`
}

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	Sorts       []Sort  `json:"sorts,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
}

type QueryResponse struct {
	Object     string  `json:"object"`
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// Filter is either a property condition or an and/or compound of filters.
type Filter struct {
	Property string           `json:"property,omitempty"`
	Title    *TextCondition   `json:"title,omitempty"`
	RichText *TextCondition   `json:"rich_text,omitempty"`
	Number   *NumberCondition `json:"number,omitempty"`
	Select   *TextCondition   `json:"select,omitempty"`
	Status   *TextCondition   `json:"status,omitempty"`
	And      []Filter         `json:"and,omitempty"`
	Or       []Filter         `json:"or,omitempty"`
}

type TextCondition struct {
	Equals     string `json:"equals,omitempty"`
	IsEmpty    bool   `json:"is_empty,omitempty"`
	IsNotEmpty bool   `json:"is_not_empty,omitempty"`
}

type NumberCondition struct {
	Equals *float64 `json:"equals,omitempty"`
}

type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

// ErrInvalidFilter is returned when a filter value does not fit the property type.
var ErrInvalidFilter = errors.New("invalid filter value")

// Equals builds an equality filter for a property of the given type
// (title, rich_text, select, status or number).
func Equals(property, propType, value string) (Filter, error) {
	f := Filter{Property: property}
	cond := &TextCondition{Equals: value}
	switch propType {
	case "title":
		f.Title = cond
	case "select":
		f.Select = cond
	case "status":
		f.Status = cond
	case "number":
		n, ok := parseNumber(value)
		if !ok {
			return Filter{}, fmt.Errorf("%w: %s is a number property, got %q", ErrInvalidFilter, property, value)
		}
		f.Number = &NumberCondition{Equals: &n}
	default:
		f.RichText = cond
	}
	return f, nil
}

// PropertyValue holds one typed property. Only the field matching Type is set.
type PropertyValue struct {
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type,omitempty"`
	Title    []RichText    `json:"title,omitempty"`
	RichText []RichText    `json:"rich_text,omitempty"`
	Number   *float64      `json:"number,omitempty"`
	Select   *SelectOption `json:"select,omitempty"`
	Status   *SelectOption `json:"status,omitempty"`
	Email    *string       `json:"email,omitempty"`
	Date     *DateValue    `json:"date,omitempty"`
	Formula  *Formula      `json:"formula,omitempty"`
}

type RichText struct {
	Type      string    `json:"type,omitempty"`
	Text      *TextBody `json:"text,omitempty"`
	PlainText string    `json:"plain_text,omitempty"`
}

type TextBody struct {
	Content string `json:"content"`
}

type SelectOption struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

type Formula struct {
	Type   string   `json:"type"`
	String *string  `json:"string,omitempty"`
	Number *float64 `json:"number,omitempty"`
}

// Text returns the plain text of a title, rich_text, select, status, email
// or string formula property.
func (p PropertyValue) Text() string {
	switch {
	case len(p.Title) > 0:
		return joinText(p.Title)
	case len(p.RichText) > 0:
		return joinText(p.RichText)
	case p.Select != nil:
		return p.Select.Name
	case p.Status != nil:
		return p.Status.Name
	case p.Email != nil:
		return *p.Email
	case p.Number != nil:
		return formatNumber(*p.Number)
	case p.Formula != nil && p.Formula.String != nil:
		return *p.Formula.String
	}
	return ""
}

// Float returns the numeric value of a number or number formula property.
// Text properties holding a number are parsed.
func (p PropertyValue) Float() (float64, bool) {
	switch {
	case p.Number != nil:
		return *p.Number, true
	case p.Formula != nil && p.Formula.Number != nil:
		return *p.Formula.Number, true
	}
	if s := strings.TrimSpace(p.Text()); s != "" {
		return parseNumber(s)
	}
	return 0, false
}

// Time returns the start of a date property.
func (p PropertyValue) Time() (time.Time, bool) {
	if p.Date == nil || p.Date.Start == "" {
		return time.Time{}, false
	}
	return ParseDate(p.Date.Start)
}

// ParseDate accepts a plain date or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func joinText(parts []RichText) string {
	var sb strings.Builder
	for _, r := range parts {
		if r.PlainText != "" {
			sb.WriteString(r.PlainText)
		} else if r.Text != nil {
			sb.WriteString(r.Text.Content)
		}
	}
	return sb.String()
}

// TitleValue encodes a title property.
func TitleValue(s string) PropertyValue {
	return PropertyValue{Title: []RichText{{Type: "text", Text: &TextBody{Content: s}}}}
}

// RichTextValue encodes a rich_text property.
func RichTextValue(s string) PropertyValue {
	return PropertyValue{RichText: []RichText{{Type: "text", Text: &TextBody{Content: s}}}}
}

func NumberValue(v float64) PropertyValue {
	return PropertyValue{Number: &v}
}

func SelectValue(name string) PropertyValue {
	return PropertyValue{Select: &SelectOption{Name: name}}
}

func StatusValue(name string) PropertyValue {
	return PropertyValue{Status: &SelectOption{Name: name}}
}

// OptionValue encodes a select or status property depending on propType.
func OptionValue(propType, name string) PropertyValue {
	if propType == "status" {
		return StatusValue(name)
	}
	return SelectValue(name)
}

// TextValue encodes a title or rich_text property depending on propType.
func TextValue(propType, s string) PropertyValue {
	if propType == "title" {
		return TitleValue(s)
	}
	return RichTextValue(s)
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
