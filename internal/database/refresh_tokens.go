package database

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HashToken creates a SHA-256 hash of the token for storage. Raw refresh
// tokens are never persisted.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Refresh tokens live in a bounded TEXT[] list on the user row so residents,
// admins and guards can stay logged in on several devices. The helpers below
// are shared by the three account repositories; the table name is always one
// of our own identifiers, never caller input.

func appendRefreshToken(db Queryer, table string, id uuid.UUID, tokenHash string, cap int) error {
	if cap < 1 {
		return fmt.Errorf("refresh token cap must be at least 1")
	}

	// Append, then keep only the newest `cap` entries (oldest evicted first).
	query := fmt.Sprintf(`
		UPDATE %s
		SET refresh_tokens = (
			SELECT ARRAY(
				SELECT t FROM unnest(array_append(refresh_tokens, $1)) WITH ORDINALITY AS u(t, ord)
				ORDER BY ord
				OFFSET GREATEST(cardinality(array_append(refresh_tokens, $1)) - $2, 0)
			)
		),
		    updated_at = $3
		WHERE id = $4
	`, table)

	_, err := db.Exec(query, tokenHash, cap, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to append refresh token: %w", err)
	}

	return nil
}

func removeRefreshToken(db Queryer, table string, id uuid.UUID, tokenHash string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET refresh_tokens = array_remove(refresh_tokens, $1),
		    updated_at = $2
		WHERE id = $3
	`, table)

	_, err := db.Exec(query, tokenHash, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to remove refresh token: %w", err)
	}

	return nil
}

func hasRefreshToken(db Queryer, table string, id uuid.UUID, tokenHash string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s WHERE id = $1 AND $2 = ANY(refresh_tokens)
		)
	`, table)

	var exists bool
	err := db.QueryRow(query, id, tokenHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check refresh token: %w", err)
	}

	return exists, nil
}
