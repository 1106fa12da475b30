package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			trigger   TEXT,
			symbols   INTEGER,
			dca_count INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_runs_ts ON scan_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS scan_results (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id               INTEGER NOT NULL REFERENCES scan_runs(id),
			symbol               TEXT NOT NULL,
			market               TEXT,
			close                REAL,
			score                REAL,
			category             TEXT,
			is_dca               INTEGER,
			accumulation_score   REAL,
			spring_score         REAL,
			obv_score            REAL,
			volume_score         REAL,
			breakout_score       REAL,
			ema_cross_score      REAL,
			rsi_recovery_score   REAL,
			atr_volatility_score REAL,
			rl                   REAL,
			rh                   REAL,
			range_pct            REAL,
			atr                  REAL,
			t1_from              REAL,
			t1_to                REAL,
			entry_breakout       REAL,
			stop_breakout        REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_results_symbol ON scan_results(symbol, run_id)`,

		`CREATE TABLE IF NOT EXISTS portfolio_summaries (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp         INTEGER NOT NULL,
			portfolio_id      TEXT NOT NULL,
			transactions      INTEGER,
			active_positions  INTEGER,
			investment        REAL,
			current_value     REAL,
			profit_loss       REAL,
			profit_loss_pct   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_summaries_ts ON portfolio_summaries(portfolio_id, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScan(run *ScanRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dca := 0
	for _, res := range run.Results {
		if res.IsDCA {
			dca++
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO scan_runs (timestamp, trigger, symbols, dca_count) VALUES (?,?,?,?)`,
		r.now().Unix(), run.Trigger, len(run.Results), dca)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scan run id: %w", err)
	}

	for _, s := range run.Results {
		b := s.Breakdown
		_, err := tx.Exec(`INSERT INTO scan_results
			(run_id, symbol, market, close, score, category, is_dca,
			 accumulation_score, spring_score, obv_score, volume_score,
			 breakout_score, ema_cross_score, rsi_recovery_score, atr_volatility_score,
			 rl, rh, range_pct, atr, t1_from, t1_to, entry_breakout, stop_breakout)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			runID, s.Symbol, string(s.Market), s.Close, s.Score, string(s.Category), boolToInt(s.IsDCA),
			b.Accumulation.Score, b.Spring.Score, b.OBV.Score, b.Volume.Score,
			b.Breakout.Score, b.EMACross.Score, b.RSIRecovery.Score, b.ATRVolatility.Score,
			s.Levels.RL, s.Levels.RH, s.Levels.RangePct, s.ATR,
			s.Plan.Targets.T1.From, s.Plan.Targets.T1.To, s.Plan.Entries.Breakout, s.Plan.Stops.Breakout,
		)
		if err != nil {
			return fmt.Errorf("insert scan result %s: %w", s.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordSummary(evt *SummaryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := evt.Summary
	_, err := r.db.Exec(`INSERT INTO portfolio_summaries
		(timestamp, portfolio_id, transactions, active_positions, investment, current_value, profit_loss, profit_loss_pct)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.now().Unix(), evt.PortfolioID, s.TotalTransactions, s.ActivePositions,
		s.TotalInvestment, s.TotalCurrentValue, s.TotalProfitLoss, s.TotalProfitLossPercent,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
