package store

// Schema is the SQLite dialect of the ledger schema. Amounts are integer lamports.
const Schema = `
CREATE TABLE IF NOT EXISTS artists (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	artist_name TEXT NOT NULL,
	wallet_address TEXT NOT NULL,
	bio TEXT,
	avatar_url TEXT,
	verified BOOLEAN NOT NULL DEFAULT 0,
	total_streams INTEGER NOT NULL DEFAULT 0,
	total_earnings INTEGER NOT NULL DEFAULT 0,
	pending_withdrawal INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	CHECK (pending_withdrawal >= 0 AND pending_withdrawal <= total_earnings)
);

CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	artist_id TEXT NOT NULL REFERENCES artists(id),
	title TEXT NOT NULL,
	ipfs_cid TEXT NOT NULL DEFAULT '',
	duration INTEGER NOT NULL DEFAULT 0,
	genre TEXT,
	stream_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist_id);

CREATE TABLE IF NOT EXISTS streams (
	id TEXT PRIMARY KEY,
	track_id TEXT NOT NULL REFERENCES tracks(id),
	listener_id TEXT,
	completed BOOLEAN NOT NULL DEFAULT 0,
	duration_listened INTEGER NOT NULL DEFAULT 0,
	streamed_at DATETIME NOT NULL,
	settled_payment_id TEXT
);

-- Unsettled completed streams are what every aggregation cycle scans
CREATE INDEX IF NOT EXISTS idx_streams_unsettled ON streams(streamed_at, track_id)
WHERE settled_payment_id IS NULL AND completed = 1;

CREATE INDEX IF NOT EXISTS idx_streams_settled ON streams(settled_payment_id);

CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	artist_id TEXT NOT NULL REFERENCES artists(id),
	track_id TEXT,
	kind TEXT NOT NULL,
	amount INTEGER NOT NULL,
	status TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	transaction_signature TEXT,
	destination TEXT,
	last_valid_height INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	processed_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	CHECK (amount >= 0)
);

CREATE INDEX IF NOT EXISTS idx_payments_artist ON payments(artist_id, created_at);

-- At most one open withdrawal per artist
CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_open_withdrawal ON payments(artist_id)
WHERE kind = 'withdrawal' AND status = 'pending';

CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_signature ON payments(transaction_signature)
WHERE transaction_signature IS NOT NULL;

CREATE TABLE IF NOT EXISTS aggregation_runs (
	id TEXT PRIMARY KEY,
	window_start DATETIME NOT NULL,
	window_end DATETIME NOT NULL,
	status TEXT NOT NULL,
	artists INTEGER NOT NULL DEFAULT 0,
	streams INTEGER NOT NULL DEFAULT 0,
	amount INTEGER NOT NULL DEFAULT 0,
	failures INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	created_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// PostgresSchema is the Postgres dialect of Schema.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS artists (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	artist_name TEXT NOT NULL,
	wallet_address TEXT NOT NULL,
	bio TEXT,
	avatar_url TEXT,
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	total_streams BIGINT NOT NULL DEFAULT 0,
	total_earnings BIGINT NOT NULL DEFAULT 0,
	pending_withdrawal BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CHECK (pending_withdrawal >= 0 AND pending_withdrawal <= total_earnings)
);

CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	artist_id TEXT NOT NULL REFERENCES artists(id),
	title TEXT NOT NULL,
	ipfs_cid TEXT NOT NULL DEFAULT '',
	duration INTEGER NOT NULL DEFAULT 0,
	genre TEXT,
	stream_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist_id);

CREATE TABLE IF NOT EXISTS streams (
	id TEXT PRIMARY KEY,
	track_id TEXT NOT NULL REFERENCES tracks(id),
	listener_id TEXT,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	duration_listened INTEGER NOT NULL DEFAULT 0,
	streamed_at TIMESTAMPTZ NOT NULL,
	settled_payment_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_streams_unsettled ON streams(streamed_at, track_id)
WHERE settled_payment_id IS NULL AND completed;

CREATE INDEX IF NOT EXISTS idx_streams_settled ON streams(settled_payment_id);

CREATE TABLE IF NOT EXISTS payments (
	id TEXT PRIMARY KEY,
	artist_id TEXT NOT NULL REFERENCES artists(id),
	track_id TEXT,
	kind TEXT NOT NULL,
	amount BIGINT NOT NULL CHECK (amount >= 0),
	status TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	transaction_signature TEXT,
	destination TEXT,
	last_valid_height BIGINT NOT NULL DEFAULT 0,
	error TEXT,
	processed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payments_artist ON payments(artist_id, created_at);

CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_open_withdrawal ON payments(artist_id)
WHERE kind = 'withdrawal' AND status = 'pending';

CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_signature ON payments(transaction_signature)
WHERE transaction_signature IS NOT NULL;

CREATE TABLE IF NOT EXISTS aggregation_runs (
	id TEXT PRIMARY KEY,
	window_start TIMESTAMPTZ NOT NULL,
	window_end TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	artists INTEGER NOT NULL DEFAULT 0,
	streams BIGINT NOT NULL DEFAULT 0,
	amount BIGINT NOT NULL DEFAULT 0,
	failures INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);
`
