package store

const Schema = `
CREATE TABLE IF NOT EXISTS collection_items (
	instance_id INTEGER PRIMARY KEY,
	release_id INTEGER NOT NULL,

	-- Metadata
	artist TEXT,
	title TEXT NOT NULL,
	year INTEGER,
	format TEXT,
	genres TEXT,  -- JSON array
	styles TEXT,  -- JSON array
	cover_image_url TEXT,

	-- Collection fields
	date_added DATETIME,
	folder_id INTEGER,
	rating INTEGER,
	notes TEXT,
	condition TEXT,

	-- Valuation
	suggested_value REAL,
	last_value_check DATETIME
);

CREATE INDEX IF NOT EXISTS idx_collection_items_release_id ON collection_items(release_id);
CREATE INDEX IF NOT EXISTS idx_collection_items_date_added ON collection_items(date_added);

CREATE TABLE IF NOT EXISTS value_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL UNIQUE,
	item_count INTEGER NOT NULL,
	min_value REAL,
	mean_value REAL,
	max_value REAL
);

CREATE TABLE IF NOT EXISTS credentials (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	token TEXT NOT NULL,
	secret TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
