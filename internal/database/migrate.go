package database

import (
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// coreTables is used by SchemaStatus to report which tables exist
var coreTables = []string{
	"apartments", "blocks", "floors", "flats",
	"client_users", "admin_users", "guards", "otp_verifications",
	"flat_current_clients", "occupancy_requests", "gate_passes",
	"visitor_parties", "check_in_outs",
	"subscriptions", "subscription_histories",
	"notices", "maintenance_tickets", "blog_posts",
}

// ApplySchema applies the embedded schema. Every statement is idempotent
// (IF NOT EXISTS), so re-running is safe.
func ApplySchema(db DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SchemaStatus returns, per core table, whether it exists in the database
func SchemaStatus(db DB) (map[string]bool, error) {
	status := make(map[string]bool, len(coreTables))

	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`

	for _, table := range coreTables {
		var exists bool
		if err := db.QueryRow(query, table).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		status[table] = exists
	}

	return status, nil
}
