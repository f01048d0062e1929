package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/ledger/ledger"
)

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies the schema.
// Writers take the lock at BEGIN so a settlement never fails half way on a
// lock upgrade.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, err
	}
	// one connection: transactions are serialized and ":memory:" stays a
	// single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate&_busy_timeout=5000"
}

func (j *SQLite) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error { return t.tx.Commit() }

func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

const accountCols = `initial_balance, current_balance, available_balance, total_profit, total_commission, position_cost, position_quantity`

func (t *sqliteTx) Account(ctx context.Context) (ledger.Account, bool, error) {
	var a ledger.Account
	err := t.tx.QueryRowContext(ctx, `
		SELECT `+accountCols+`, updated_at
		FROM accounts WHERE id = 1`).Scan(
		&a.InitialBalance,
		&a.CurrentBalance,
		&a.AvailableBalance,
		&a.TotalProfit,
		&a.TotalCommission,
		&a.PositionCost,
		&a.PositionQuantity,
		&a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return ledger.Account{}, false, nil
	}
	if err != nil {
		return ledger.Account{}, false, err
	}
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, true, nil
}

func (t *sqliteTx) PutAccount(ctx context.Context, a ledger.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (id, `+accountCols+`, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			initial_balance = excluded.initial_balance,
			current_balance = excluded.current_balance,
			available_balance = excluded.available_balance,
			total_profit = excluded.total_profit,
			total_commission = excluded.total_commission,
			position_cost = excluded.position_cost,
			position_quantity = excluded.position_quantity,
			updated_at = excluded.updated_at`,
		a.InitialBalance, a.CurrentBalance, a.AvailableBalance, a.TotalProfit,
		a.TotalCommission, a.PositionCost, a.PositionQuantity, a.UpdatedAt,
	)
	return err
}

const positionCols = `symbol, side, avg_price, quantity, reserved, status, created_at, updated_at`

func scanPosition(sc interface{ Scan(...any) error }) (ledger.Position, error) {
	var p ledger.Position
	err := sc.Scan(
		&p.Symbol,
		&p.Side,
		&p.AvgPrice,
		&p.Quantity,
		&p.Reserved,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func (t *sqliteTx) Position(ctx context.Context, symbol string) (ledger.Position, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+positionCols+` FROM positions WHERE symbol = ?`, symbol)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return ledger.Position{}, false, nil
	}
	if err != nil {
		return ledger.Position{}, false, err
	}
	return p, true, nil
}

func (t *sqliteTx) Positions(ctx context.Context) ([]ledger.Position, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+positionCols+` FROM positions ORDER BY symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *sqliteTx) PutPosition(ctx context.Context, p ledger.Position) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO positions (`+positionCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			side = excluded.side,
			avg_price = excluded.avg_price,
			quantity = excluded.quantity,
			reserved = excluded.reserved,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		p.Symbol, p.Side, p.AvgPrice, p.Quantity, p.Reserved, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (t *sqliteTx) DeletePosition(ctx context.Context, symbol string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
	return err
}

const lotCols = `seq, signal_id, symbol, side, price, quantity, remaining, opened_at`

func scanLot(sc interface{ Scan(...any) error }) (ledger.Lot, error) {
	var l ledger.Lot
	err := sc.Scan(
		&l.Seq,
		&l.SignalID,
		&l.Symbol,
		&l.Side,
		&l.Price,
		&l.Quantity,
		&l.Remaining,
		&l.OpenedAt,
	)
	l.OpenedAt = l.OpenedAt.UTC()
	return l, err
}

func (t *sqliteTx) Lots(ctx context.Context, symbol string, side ledger.Side) ([]ledger.Lot, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+lotCols+`
		FROM lots
		WHERE symbol = ? AND side = ?
		ORDER BY seq ASC`, symbol, side)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *sqliteTx) Lot(ctx context.Context, signalID string) (ledger.Lot, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+lotCols+` FROM lots WHERE signal_id = ?`, signalID)
	l, err := scanLot(row)
	if err == sql.ErrNoRows {
		return ledger.Lot{}, false, nil
	}
	if err != nil {
		return ledger.Lot{}, false, err
	}
	return l, true, nil
}

func (t *sqliteTx) AddLot(ctx context.Context, l ledger.Lot) (ledger.Lot, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO lots (signal_id, symbol, side, price, quantity, remaining, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.SignalID, l.Symbol, l.Side, l.Price, l.Quantity, l.Remaining, l.OpenedAt,
	)
	if err != nil {
		return ledger.Lot{}, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return ledger.Lot{}, err
	}
	l.Seq = seq
	return l, nil
}

func (t *sqliteTx) UpdateLot(ctx context.Context, l ledger.Lot) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE lots SET remaining = ? WHERE signal_id = ?`, l.Remaining, l.SignalID)
	return err
}

func (t *sqliteTx) DeleteLot(ctx context.Context, signalID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM lots WHERE signal_id = ?`, signalID)
	return err
}

const signalCols = `id, time, symbol, type, price, quantity, status, reason, close_date, close_price, realized_profit, commission, offsets`

func scanSignal(sc interface{ Scan(...any) error }) (ledger.Signal, error) {
	var (
		s          ledger.Signal
		closeDate  sql.NullTime
		closePrice decimal.NullDecimal
		offsets    string
	)
	err := sc.Scan(
		&s.ID,
		&s.Time,
		&s.Symbol,
		&s.Type,
		&s.Price,
		&s.Quantity,
		&s.Status,
		&s.Reason,
		&closeDate,
		&closePrice,
		&s.RealizedProfit,
		&s.Commission,
		&offsets,
	)
	if err != nil {
		return ledger.Signal{}, err
	}
	s.Time = s.Time.UTC()
	if closeDate.Valid {
		d := closeDate.Time.UTC()
		s.CloseDate = &d
	}
	if closePrice.Valid {
		p := closePrice.Decimal
		s.ClosePrice = &p
	}
	if offsets != "" {
		s.Offsets = strings.Split(offsets, ",")
	}
	return s, nil
}

func signalArgs(s ledger.Signal) []any {
	var closeDate sql.NullTime
	if s.CloseDate != nil {
		closeDate = sql.NullTime{Time: *s.CloseDate, Valid: true}
	}
	var closePrice decimal.NullDecimal
	if s.ClosePrice != nil {
		closePrice = decimal.NullDecimal{Decimal: *s.ClosePrice, Valid: true}
	}
	return []any{
		s.ID, s.Time, s.Symbol, s.Type, s.Price, s.Quantity, s.Status, s.Reason,
		closeDate, closePrice, s.RealizedProfit, s.Commission, strings.Join(s.Offsets, ","),
	}
}

func (t *sqliteTx) Signal(ctx context.Context, id string) (ledger.Signal, bool, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+signalCols+` FROM signals WHERE id = ?`, id)
	s, err := scanSignal(row)
	if err == sql.ErrNoRows {
		return ledger.Signal{}, false, nil
	}
	if err != nil {
		return ledger.Signal{}, false, err
	}
	return s, true, nil
}

func (t *sqliteTx) Signals(ctx context.Context, f ledger.SignalFilter) ([]ledger.Signal, error) {
	var (
		where []string
		args  []any
	)
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}

	q := `SELECT ` + signalCols + ` FROM signals`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	out, err := querySignals(ctx, t.tx, q, args...)
	if err != nil {
		return nil, err
	}
	sortSignals(out)
	return out, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func querySignals(ctx context.Context, q queryer, query string, args ...any) ([]ledger.Signal, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *sqliteTx) InsertSignal(ctx context.Context, s ledger.Signal) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO signals (`+signalCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		signalArgs(s)...,
	)
	return err
}

// UpdateSignal only touches the columns that may change after insert.
func (t *sqliteTx) UpdateSignal(ctx context.Context, s ledger.Signal) error {
	args := signalArgs(s)
	res, err := t.tx.ExecContext(ctx, `
		UPDATE signals SET
			status = ?, reason = ?, close_date = ?, close_price = ?,
			realized_profit = ?, commission = ?, offsets = ?
		WHERE id = ?`,
		args[6], args[7], args[8], args[9], args[10], args[11], args[12], s.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("signal %s not recorded", s.ID)
	}
	return nil
}

func (t *sqliteTx) DeleteSignal(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM signals WHERE id = ?`, id)
	return err
}

func (t *sqliteTx) RecordSnapshot(ctx context.Context, s ledger.AccountSnapshot) error {
	a := s.Account
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO account_snapshots (time, signal_id, `+accountCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Time, s.SignalID, a.InitialBalance, a.CurrentBalance, a.AvailableBalance,
		a.TotalProfit, a.TotalCommission, a.PositionCost, a.PositionQuantity,
	)
	return err
}

func (t *sqliteTx) Snapshots(ctx context.Context, limit int) ([]ledger.AccountSnapshot, error) {
	q := `SELECT time, signal_id, ` + accountCols + ` FROM account_snapshots ORDER BY id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.AccountSnapshot
	for rows.Next() {
		var s ledger.AccountSnapshot
		a := &s.Account
		if err := rows.Scan(
			&s.Time,
			&s.SignalID,
			&a.InitialBalance,
			&a.CurrentBalance,
			&a.AvailableBalance,
			&a.TotalProfit,
			&a.TotalCommission,
			&a.PositionCost,
			&a.PositionQuantity,
		); err != nil {
			return nil, err
		}
		s.Time = s.Time.UTC()
		a.UpdatedAt = s.Time
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
