package sqlite

func (s Storage) RunMigrations() error {
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS mappings (
		id VARCHAR NOT NULL PRIMARY KEY,
		source_event_id VARCHAR NOT NULL UNIQUE,
		public_event_id VARCHAR NOT NULL DEFAULT "",
		last_public_event_id VARCHAR NOT NULL DEFAULT "",
		payload_hash VARCHAR NOT NULL DEFAULT "",
		last_synced_at VARCHAR NOT NULL DEFAULT "",
		status VARCHAR NOT NULL DEFAULT "draft"
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mappings_public_event_id
		ON mappings (public_event_id)`,
}
