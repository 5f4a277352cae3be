package pagination

import (
	"net/url"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params are the normalized page/limit of a list request
type Params struct {
	Page  int
	Limit int
}

// FromValues parses page and limit from query values, falling back to the
// defaults on anything missing, malformed, or out of range.
func FromValues(values url.Values) Params {
	p := Params{Page: DefaultPage, Limit: DefaultLimit}

	if raw := values.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page >= 1 {
			p.Page = page
		}
	}

	if raw := values.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit >= 1 {
			if limit > MaxLimit {
				limit = MaxLimit
			}
			p.Limit = limit
		}
	}

	return p
}

// Offset converts the params to a SQL offset
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Docs describes one page of a larger result set
type Docs struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// Envelope is the wire shape of every paginated list response
type Envelope struct {
	Data interface{} `json:"data"`
	Docs Docs        `json:"docs"`
}

// NewEnvelope wraps one page of results with its paging metadata. An empty
// result set still reports at least one page.
func NewEnvelope(data interface{}, total int, p Params) Envelope {
	pages := (total + p.Limit - 1) / p.Limit
	if pages < 1 {
		pages = 1
	}

	return Envelope{
		Data: data,
		Docs: Docs{
			Total: total,
			Page:  p.Page,
			Limit: p.Limit,
			Pages: pages,
		},
	}
}
