package postgresql

// migrations returns the schema migrations for the automation store, keyed by
// version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS automations (
				id                 VARCHAR(36) PRIMARY KEY,
				name               VARCHAR(255) NOT NULL,
				slug               VARCHAR(255) NOT NULL UNIQUE,
				description        TEXT NOT NULL DEFAULT '',
				trigger_type       VARCHAR(64) NOT NULL,
				trigger_conditions JSONB NOT NULL DEFAULT '{}',
				stop_conditions    JSONB NOT NULL DEFAULT '{}',
				send_window        JSONB NOT NULL DEFAULT '{}',
				send_on_weekends   BOOLEAN NOT NULL DEFAULT FALSE,
				is_active          BOOLEAN NOT NULL DEFAULT FALSE,
				flow_definition    JSONB NOT NULL DEFAULT '{"nodes":[],"edges":[]}',
				steps              JSONB NOT NULL DEFAULT '[]',
				created_at         TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at         TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_automations_slug ON automations (slug);
			CREATE INDEX IF NOT EXISTS idx_automations_is_active ON automations (is_active);
		`,
	}
}
