package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/35000ft/next-train-bot/pkg/logger"
)

// Preference is one saved user/group preference.
type Preference struct {
	ID             int64
	UserID         string
	GroupID        string
	DefaultAirport string
	UpdatedAt      time.Time
}

// PreferenceStorage persists default-airport choices per user and group.
type PreferenceStorage struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPreferenceStorage creates the storage and its schema.
func NewPreferenceStorage(db *sql.DB, log *logger.Logger) (*PreferenceStorage, error) {
	s := &PreferenceStorage{
		db:  db,
		log: log.Named("sqlite-preferences"),
	}
	if err := s.initDB(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PreferenceStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL DEFAULT '',
			group_id TEXT NOT NULL DEFAULT '',
			default_airport TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, group_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_preferences_user ON preferences(user_id)`)
	if err != nil {
		return fmt.Errorf("failed to create preferences index: %w", err)
	}
	return nil
}

// SetDefaultAirport saves the default airport for a user/group pair. Either
// ID may be empty; the pair is upserted.
func (s *PreferenceStorage) SetDefaultAirport(userID, groupID, airport string) error {
	if airport == "" {
		return fmt.Errorf("empty airport")
	}
	_, err := s.db.Exec(
		`INSERT INTO preferences (user_id, group_id, default_airport, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, group_id)
		DO UPDATE SET default_airport = excluded.default_airport, updated_at = excluded.updated_at`,
		userID, groupID, airport, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	s.log.Debug("default airport saved",
		logger.String("user", userID), logger.String("group", groupID),
		logger.String("airport", airport))
	return nil
}

// DefaultAirport resolves the default airport for a user in a group. The
// most specific match wins: user+group, then user, then group. Empty string
// means no preference saved.
func (s *PreferenceStorage) DefaultAirport(userID, groupID string) (string, error) {
	rows, err := s.db.Query(
		`SELECT user_id, group_id, default_airport FROM preferences
		WHERE (user_id = ? AND group_id = ?)
		   OR (user_id = ? AND group_id = '')
		   OR (user_id = '' AND group_id = ?)`,
		userID, groupID, userID, groupID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	best, bestRank := "", -1
	for rows.Next() {
		var u, g, airport string
		if err := rows.Scan(&u, &g, &airport); err != nil {
			return "", fmt.Errorf("failed to scan preference: %w", err)
		}
		rank := 0
		switch {
		case u != "" && g != "":
			rank = 2
		case u != "":
			rank = 1
		}
		if rank > bestRank {
			best, bestRank = airport, rank
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read preferences: %w", err)
	}
	return best, nil
}
