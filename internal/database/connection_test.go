package database

import (
	"testing"

	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolerCompatDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "url without query",
			dsn:  "postgres://app:secret@db:5432/residence",
			want: "postgres://app:secret@db:5432/residence?binary_parameters=yes",
		},
		{
			name: "url with query",
			dsn:  "postgres://app:secret@db:5432/residence?sslmode=require",
			want: "postgres://app:secret@db:5432/residence?sslmode=require&binary_parameters=yes",
		},
		{
			name: "already set",
			dsn:  "postgres://app:secret@db:5432/residence?binary_parameters=yes",
			want: "postgres://app:secret@db:5432/residence?binary_parameters=yes",
		},
		{
			name: "key-value form",
			dsn:  "host=db dbname=residence sslmode=disable",
			want: "host=db dbname=residence sslmode=disable binary_parameters=yes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := poolerCompatDSN(tt.dsn)
			assert.Equal(t, tt.want, got)
			// only driver-level settings may be added; anything else would be
			// forwarded to the server at startup and rejected
			assert.NotContains(t, got, "prefer_simple_protocol")
		})
	}
}

func TestNewConnection_RequiresURL(t *testing.T) {
	_, err := NewConnection(config.DatabaseConfig{})
	require.Error(t, err)
}
