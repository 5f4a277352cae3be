package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromValues_Defaults(t *testing.T) {
	p := FromValues(url.Values{})
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
}

func TestFromValues_Explicit(t *testing.T) {
	values := url.Values{}
	values.Set("page", "3")
	values.Set("limit", "25")

	p := FromValues(values)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, 50, p.Offset())
}

func TestFromValues_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		page  string
		limit string
	}{
		{"Non-numeric", "abc", "xyz"},
		{"Zero", "0", "0"},
		{"Negative", "-1", "-5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			values := url.Values{}
			values.Set("page", tc.page)
			values.Set("limit", tc.limit)

			p := FromValues(values)
			assert.Equal(t, DefaultPage, p.Page)
			assert.Equal(t, DefaultLimit, p.Limit)
		})
	}
}

func TestFromValues_LimitCapped(t *testing.T) {
	values := url.Values{}
	values.Set("limit", "5000")

	p := FromValues(values)
	assert.Equal(t, MaxLimit, p.Limit)
}

func TestNewEnvelope(t *testing.T) {
	p := Params{Page: 2, Limit: 10}
	env := NewEnvelope([]string{"a", "b"}, 25, p)

	assert.Equal(t, 25, env.Docs.Total)
	assert.Equal(t, 2, env.Docs.Page)
	assert.Equal(t, 10, env.Docs.Limit)
	assert.Equal(t, 3, env.Docs.Pages)
	assert.Equal(t, []string{"a", "b"}, env.Data)
}

func TestNewEnvelope_Empty(t *testing.T) {
	p := Params{Page: 1, Limit: 10}
	env := NewEnvelope([]string{}, 0, p)

	assert.Equal(t, 0, env.Docs.Total)
	assert.Equal(t, 1, env.Docs.Pages)
}

func TestNewEnvelope_ExactFit(t *testing.T) {
	p := Params{Page: 1, Limit: 10}
	env := NewEnvelope(nil, 30, p)

	assert.Equal(t, 3, env.Docs.Pages)
}
