package stats

// The schema is shared by both SQL backends. Placeholders differ, so each
// backend keeps its own statements.
const createTablesSQL = `
CREATE TABLE IF NOT EXISTS round_results (
	record_id    TEXT    NOT NULL,
	match_number INTEGER NOT NULL,
	host_player  TEXT    NOT NULL,
	guest_player TEXT    NOT NULL,
	host_score   INTEGER NOT NULL,
	guest_score  INTEGER NOT NULL,
	winner       INTEGER,
	difficulty   TEXT    NOT NULL DEFAULT '',
	played_at    BIGINT  NOT NULL,
	PRIMARY KEY (record_id, match_number)
);
CREATE TABLE IF NOT EXISTS player_totals (
	player TEXT PRIMARY KEY,
	games  INTEGER NOT NULL DEFAULT 0,
	wins   INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	ties   INTEGER NOT NULL DEFAULT 0
);
`
