package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"DCAScanner/internal/model"
)

// SQLiteStore keeps portfolios and their transactions in two tables.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps in-memory databases shared and writes serial.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Printf("[INFO] sqlite portfolio store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS portfolios (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT,
			owner       TEXT NOT NULL,
			is_primary  INTEGER NOT NULL DEFAULT 0,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id           TEXT PRIMARY KEY,
			portfolio_id TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
			seq          INTEGER NOT NULL,
			symbol       TEXT NOT NULL,
			market       TEXT,
			tx_type      TEXT NOT NULL,
			price        REAL NOT NULL,
			quantity     REAL NOT NULL,
			timestamp    INTEGER NOT NULL,
			target_price REAL,
			notes        TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_portfolio ON transactions(portfolio_id, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*model.Portfolio, error) {
	var (
		p       model.Portfolio
		primary int
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, owner, is_primary, created_at FROM portfolios WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &primary, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrPortfolioNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query portfolio: %w", err)
	}
	p.Primary = primary != 0
	p.CreatedAt = time.Unix(0, created).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symbol, market, tx_type, price, quantity, timestamp, target_price, notes
		 FROM transactions WHERE portfolio_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tx     model.Transaction
			ts     int64
			target sql.NullFloat64
			notes  sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.Symbol, &tx.Market, &tx.Type, &tx.Price, &tx.Quantity, &ts, &target, &notes); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Timestamp = time.Unix(0, ts).UTC()
		if target.Valid {
			v := target.Float64
			tx.TargetPrice = &v
		}
		tx.Notes = notes.String
		p.Transactions = append(p.Transactions, tx)
	}
	return &p, rows.Err()
}

// Save replaces the portfolio row and its transaction rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, p *model.Portfolio) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	_, err = dbtx.ExecContext(ctx, `INSERT INTO portfolios (id, name, description, owner, is_primary, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description,
			owner=excluded.owner, is_primary=excluded.is_primary`,
		p.ID, p.Name, p.Description, p.Owner, boolToInt(p.Primary), p.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert portfolio: %w", err)
	}
	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions WHERE portfolio_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	for i, tx := range p.Transactions {
		var target any
		if tx.TargetPrice != nil {
			target = *tx.TargetPrice
		}
		_, err := dbtx.ExecContext(ctx, `INSERT INTO transactions
			(id, portfolio_id, seq, symbol, market, tx_type, price, quantity, timestamp, target_price, notes)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			tx.ID, p.ID, i, tx.Symbol, string(tx.Market), string(tx.Type), tx.Price, tx.Quantity,
			tx.Timestamp.UnixNano(), target, tx.Notes)
		if err != nil {
			return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
		}
	}
	return dbtx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbtx.Rollback()

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM transactions WHERE portfolio_id = ?`, id); err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	res, err := dbtx.ExecContext(ctx, `DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete portfolio: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrPortfolioNotFound)
	}
	return dbtx.Commit()
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, owner, is_primary, created_at FROM portfolios ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer rows.Close()

	var out []model.Portfolio
	for rows.Next() {
		var (
			p       model.Portfolio
			primary int
			created int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Owner, &primary, &created); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		p.Primary = primary != 0
		p.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite portfolio store")
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
