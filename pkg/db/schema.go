package db

import (
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS order_updates (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    bracket_order_id TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT '',
    venue TEXT NOT NULL,
    symbol TEXT NOT NULL,
    order_id TEXT NOT NULL DEFAULT '',
    client_order_id TEXT NOT NULL,
    status TEXT NOT NULL,
    side TEXT NOT NULL,
    order_type TEXT NOT NULL,
    price TEXT NOT NULL DEFAULT '0',
    quantity TEXT NOT NULL DEFAULT '0',
    executed_qty TEXT NOT NULL DEFAULT '0',
    update_time INTEGER NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_order_updates_bracket ON order_updates(bracket_order_id, id);
CREATE INDEX IF NOT EXISTS idx_order_updates_client ON order_updates(client_order_id, id);
`

// ApplyMigrations creates the journal schema if it does not exist.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database not initialised")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
