package store

type migration struct {
	Name string
	SQL  string
}

// migrations are applied in order; the schema version is the index of the
// last applied entry plus one. Never reorder or edit a shipped entry.
var migrations = []migration{
	{
		Name: "create token index",
		SQL: `
			CREATE TABLE token_index (
				token_hash  TEXT PRIMARY KEY,
				agent_id    TEXT NOT NULL UNIQUE,
				indexed_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
}
