// journal/schema.go
package journal

// Decimal columns are TEXT so amounts round-trip without float drift.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	initial_balance TEXT NOT NULL,
	current_balance TEXT NOT NULL,
	available_balance TEXT NOT NULL,
	total_profit TEXT NOT NULL,
	total_commission TEXT NOT NULL,
	position_cost TEXT NOT NULL,
	position_quantity TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	symbol TEXT PRIMARY KEY,
	side TEXT NOT NULL,
	avg_price TEXT NOT NULL,
	quantity TEXT NOT NULL,
	reserved TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS lots (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	signal_id TEXT NOT NULL UNIQUE,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	price TEXT NOT NULL,
	quantity TEXT NOT NULL,
	remaining TEXT NOT NULL,
	opened_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lots_symbol_side ON lots(symbol, side, seq);

CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	type TEXT NOT NULL,
	price TEXT NOT NULL,
	quantity TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	close_date DATETIME,
	close_price TEXT,
	realized_profit TEXT NOT NULL,
	commission TEXT NOT NULL,
	offsets TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_signals_symbol_status ON signals(symbol, status);
CREATE INDEX IF NOT EXISTS idx_signals_close_date ON signals(close_date);

CREATE TABLE IF NOT EXISTS account_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	time DATETIME NOT NULL,
	signal_id TEXT NOT NULL,
	initial_balance TEXT NOT NULL,
	current_balance TEXT NOT NULL,
	available_balance TEXT NOT NULL,
	total_profit TEXT NOT NULL,
	total_commission TEXT NOT NULL,
	position_cost TEXT NOT NULL,
	position_quantity TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_account_snapshots_time ON account_snapshots(time);
`
