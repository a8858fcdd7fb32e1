package localhost

import (
	"context"
	"database/sql"
	"errors"
)

// errDictKeyNotFound mirrors the host's "None" code for a missing dictionary key.
var errDictKeyNotFound = errors.New("dictionary key not found")

// seedDictionary inserts or replaces every entry of a config-declared
// dictionary. Called once at startup per configured dictionary.
func (s *store) seedDictionary(ctx context.Context, name string, entries map[string]string) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dictionary_entries (dictionary_name, key, value) VALUES (?, ?, ?)
			 ON CONFLICT(dictionary_name, key) DO UPDATE SET value = excluded.value`,
			name, k, v,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// dictionaryGet returns the value for (dictionaryName, key), or
// errDictKeyNotFound if absent.
func (s *store) dictionaryGet(ctx context.Context, dictionaryName, key string) (string, error) {
	var value string
	err := s.read.QueryRowContext(ctx,
		`SELECT value FROM dictionary_entries WHERE dictionary_name = ? AND key = ?`,
		dictionaryName, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errDictKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
