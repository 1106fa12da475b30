package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"DCAScanner/internal/collector"
	"DCAScanner/internal/ledger"
	"DCAScanner/internal/model"
	"DCAScanner/internal/notifier"
	"DCAScanner/internal/portfolio"
	"DCAScanner/internal/recorder"
	"DCAScanner/internal/signal"
)

// Target is one symbol of the scan universe.
type Target struct {
	Symbol string
	Market model.Market
}

// Scheduler manages all cron tasks and chat commands.
type Scheduler struct {
	Cron         *cron.Cron
	Collector    *collector.Collector
	Portfolios   *portfolio.Manager
	Notifier     notifier.Sender
	Recorder     recorder.Recorder
	Ctx          context.Context
	Targets      []Target
	TopN         int
	PortfolioIDs []string
	// Owner is the portfolio owner chat commands act for.
	Owner string

	now      func() time.Time
	scanMu   sync.Mutex
	mu       sync.Mutex
	lastScan []*model.ScoreResult
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col *collector.Collector, pm *portfolio.Manager, sender notifier.Sender, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Collector:  col,
		Portfolios: pm,
		Notifier:   sender,
		Recorder:   rec,
		Ctx:        ctx,
		TopN:       10,
		now:        time.Now,
	}
}

// RegisterAll registers the scan task and, when portfolios are configured,
// the summary task.
func (s *Scheduler) RegisterAll(scanCron, summaryCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, func() { s.scanTask("CRON") }); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	if len(s.PortfolioIDs) > 0 {
		if _, err := s.Cron.AddFunc(summaryCron, s.summaryTask); err != nil {
			return fmt.Errorf("register summary task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunScanNow executes the scan task immediately (for RUN_ON_START).
func (s *Scheduler) RunScanNow() {
	s.scanTask("STARTUP")
}

// Scan collects every target, scores the snapshots and records the run.
// Symbols that fail to collect are logged and skipped.
func (s *Scheduler) Scan(trigger string) ([]*model.ScoreResult, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	snapshots := make([]model.IndicatorSnapshot, 0, len(s.Targets))
	for _, t := range s.Targets {
		snap, err := s.Collector.Collect(s.Ctx, t.Symbol, t.Market)
		if err != nil {
			if s.Ctx.Err() != nil {
				return nil, s.Ctx.Err()
			}
			log.Printf("[WARN] scan %s: %v", t.Symbol, err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	if len(snapshots) == 0 && len(s.Targets) > 0 {
		return nil, errors.New("no symbol could be collected")
	}

	results := signal.Scan(snapshots)
	log.Printf("[INFO] scan finished: %d scored, %d DCA", len(results), len(signal.FilterDCA(results)))

	s.mu.Lock()
	s.lastScan = results
	s.mu.Unlock()

	if err := s.Recorder.RecordScan(&recorder.ScanRun{Trigger: trigger, Results: results}); err != nil {
		log.Printf("[ERROR] record scan: %v", err)
	}
	return results, nil
}

func (s *Scheduler) scanTask(trigger string) {
	log.Printf("[INFO] running scan task (%s)", trigger)
	results, err := s.Scan(trigger)
	if err != nil {
		log.Printf("[ERROR] scan: %v", err)
		s.trySend(fmt.Sprintf("❌ Scan failed: %v", err))
		return
	}
	s.trySend(notifier.FormatScanReport(results, s.TopN, s.now()))
}

// prices looks up quotes for every symbol held in a portfolio.
func (s *Scheduler) prices(id string) (map[string]float64, error) {
	symbols, err := s.Portfolios.Symbols(s.Ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Collector.CurrentPrices(s.Ctx, symbols), nil
}

// Summary computes and records the summary of one portfolio.
func (s *Scheduler) Summary(id string) (model.PortfolioSummary, error) {
	prices, err := s.prices(id)
	if err != nil {
		return model.PortfolioSummary{}, err
	}
	sum, _, err := s.Portfolios.Summary(s.Ctx, id, prices)
	if err != nil {
		return model.PortfolioSummary{}, err
	}
	if err := s.Recorder.RecordSummary(&recorder.SummaryEvent{PortfolioID: id, Summary: sum}); err != nil {
		log.Printf("[ERROR] record summary: %v", err)
	}
	return sum, nil
}

func (s *Scheduler) summaryTask() {
	log.Println("[INFO] running summary task")
	for _, id := range s.PortfolioIDs {
		sum, err := s.Summary(id)
		if err != nil {
			log.Printf("[ERROR] summary %s: %v", id, err)
			continue
		}
		s.trySend(notifier.FormatSummary(id, sum))
	}
}

const helpText = `Commands:
• /scan
• /score &lt;symbol&gt;
• /summary [portfolio]
• /positions [portfolio]
• /portfolios
• /newportfolio &lt;name&gt;
• /delportfolio &lt;portfolio&gt;
• /buy &lt;symbol&gt; &lt;market&gt; &lt;price&gt; &lt;qty&gt; [portfolio]
• /sell &lt;symbol&gt; &lt;market&gt; &lt;price&gt; &lt;qty&gt; [portfolio]
• /target &lt;tx id&gt; &lt;price&gt;
• /note &lt;tx id&gt; &lt;text&gt;`

// HandleCommand processes a chat command and returns a reply. Portfolio
// changes are made on behalf of the configured owner.
func (s *Scheduler) HandleCommand(ctx context.Context, cmd notifier.Command) string {
	switch cmd.Name {
	case "scan":
		results, err := s.Scan("COMMAND")
		if err != nil {
			return fmt.Sprintf("❌ Scan failed: %v", err)
		}
		return notifier.FormatScanReport(results, s.TopN, s.now())
	case "score":
		return s.scoreCommand(cmd.Arg(0))
	case "summary":
		id := s.portfolioArg(cmd.Arg(0))
		sum, err := s.Summary(id)
		if err != nil {
			return commandError(id, err)
		}
		return notifier.FormatSummary(id, sum)
	case "positions":
		id := s.portfolioArg(cmd.Arg(0))
		prices, err := s.prices(id)
		if err != nil {
			return commandError(id, err)
		}
		positions, err := s.Portfolios.Positions(ctx, id, prices)
		if err != nil {
			return commandError(id, err)
		}
		return notifier.FormatPositions(id, positions)
	case "portfolios":
		list, err := s.Portfolios.List(ctx, s.Owner)
		if err != nil {
			return commandError(s.Owner, err)
		}
		return notifier.FormatPortfolios(list)
	case "newportfolio":
		name := cmd.Rest(0)
		if name == "" {
			return "Usage: /newportfolio &lt;name&gt;"
		}
		p, err := s.Portfolios.CreatePortfolio(ctx, s.Owner, name, "")
		if err != nil {
			return commandError(s.Owner, err)
		}
		return fmt.Sprintf("✅ Created portfolio <code>%s</code> %s", html.EscapeString(p.ID), html.EscapeString(p.Name))
	case "delportfolio":
		id := cmd.Arg(0)
		if id == "" {
			return "Usage: /delportfolio &lt;portfolio&gt;"
		}
		if err := s.Portfolios.DeletePortfolio(ctx, id, s.Owner); err != nil {
			return commandError(id, err)
		}
		return fmt.Sprintf("🗑 Deleted portfolio <code>%s</code>", html.EscapeString(id))
	case "buy", "sell":
		return s.tradeCommand(ctx, cmd)
	case "target":
		price, err := strconv.ParseFloat(cmd.Arg(1), 64)
		if cmd.Arg(0) == "" || err != nil || price <= 0 {
			return "Usage: /target &lt;tx id&gt; &lt;price&gt;"
		}
		return s.advisoryCommand(ctx, cmd.Arg(0), &price, nil)
	case "note":
		notes := cmd.Rest(1)
		if cmd.Arg(0) == "" || notes == "" {
			return "Usage: /note &lt;tx id&gt; &lt;text&gt;"
		}
		return s.advisoryCommand(ctx, cmd.Arg(0), nil, &notes)
	default:
		return helpText
	}
}

func (s *Scheduler) scoreCommand(symbol string) string {
	if symbol == "" {
		return "Usage: /score &lt;symbol&gt;"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.lastScan {
		if strings.EqualFold(r.Symbol, symbol) {
			return notifier.FormatScoreDetail(r)
		}
	}
	return fmt.Sprintf("%s is not in the last scan", html.EscapeString(strings.ToUpper(symbol)))
}

// tradeCommand records "/buy|/sell <symbol> <market> <price> <qty> [portfolio]".
func (s *Scheduler) tradeCommand(ctx context.Context, cmd notifier.Command) string {
	usage := fmt.Sprintf("Usage: /%s &lt;symbol&gt; &lt;market&gt; &lt;price&gt; &lt;qty&gt; [portfolio]", cmd.Name)
	if len(cmd.Args) < 4 {
		return usage
	}
	market, err := model.ParseMarket(cmd.Arg(1))
	if err != nil {
		return "❌ " + html.EscapeString(err.Error())
	}
	price, err := strconv.ParseFloat(cmd.Arg(2), 64)
	if err != nil {
		return usage
	}
	qty, err := strconv.ParseFloat(cmd.Arg(3), 64)
	if err != nil {
		return usage
	}

	id := s.portfolioArg(cmd.Arg(4))
	tx, err := s.Portfolios.AddTransaction(ctx, id, s.Owner, portfolio.TransactionInput{
		Symbol:   cmd.Arg(0),
		Market:   market,
		Type:     model.TransactionType(cmd.Name),
		Price:    price,
		Quantity: qty,
	})
	if err != nil {
		return commandError(id, err)
	}
	log.Printf("[INFO] recorded %s %s x%.4g @ %.4g in %s", tx.Type, tx.Symbol, tx.Quantity, tx.Price, id)
	return notifier.FormatTransaction(id, tx)
}

func (s *Scheduler) advisoryCommand(ctx context.Context, txID string, target *float64, notes *string) string {
	id, err := s.Portfolios.FindTransaction(ctx, s.Owner, txID)
	if err != nil {
		return commandError(txID, err)
	}
	tx, err := s.Portfolios.UpdateAdvisory(ctx, id, s.Owner, txID, target, notes)
	if err != nil {
		return commandError(id, err)
	}
	return notifier.FormatTransaction(id, tx)
}

// portfolioArg falls back to the first configured portfolio.
func (s *Scheduler) portfolioArg(arg string) string {
	if arg == "" && len(s.PortfolioIDs) > 0 {
		return s.PortfolioIDs[0]
	}
	return arg
}

func commandError(subject string, err error) string {
	subject = html.EscapeString(subject)
	switch {
	case errors.Is(err, portfolio.ErrPortfolioNotFound):
		return fmt.Sprintf("Portfolio %q not found", subject)
	case errors.Is(err, portfolio.ErrTransactionNotFound):
		return fmt.Sprintf("Transaction %q not found", subject)
	case errors.Is(err, portfolio.ErrPrimaryPortfolio):
		return fmt.Sprintf("Portfolio %q is the primary portfolio and cannot be deleted", subject)
	case errors.Is(err, portfolio.ErrNotOwner):
		return fmt.Sprintf("Portfolio %q belongs to another owner", subject)
	case errors.Is(err, portfolio.ErrPortfolioLimit):
		return fmt.Sprintf("Portfolio limit of %d reached", portfolio.MaxPortfolios)
	case errors.Is(err, ledger.ErrInvalidTransaction):
		return "❌ " + html.EscapeString(err.Error())
	}
	log.Printf("[ERROR] command on %s: %v", subject, err)
	return "❌ " + html.EscapeString(err.Error())
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
