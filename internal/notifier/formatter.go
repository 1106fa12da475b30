package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"DCAScanner/internal/model"
)

func categoryIcon(c model.Category) string {
	switch c {
	case model.CategoryStrongDCA:
		return "🟢"
	case model.CategoryDCA:
		return "🟡"
	case model.CategoryWeakDCA:
		return "🟠"
	default:
		return "⚪"
	}
}

// FormatScanReport formats the top scan results into a Telegram message.
// topN <= 0 lists every result.
func FormatScanReport(results []*model.ScoreResult, topN int, at time.Time) string {
	var b strings.Builder

	dca := 0
	for _, r := range results {
		if r.IsDCA {
			dca++
		}
	}
	b.WriteString(fmt.Sprintf("📊 <b>DCA Scan</b> | %s\n", at.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Scanned %d symbols, %d DCA candidates\n\n", len(results), dca))

	if len(results) == 0 {
		b.WriteString("No symbols scanned.")
		return b.String()
	}

	shown := results
	if topN > 0 && len(shown) > topN {
		shown = shown[:topN]
	}
	for i, r := range shown {
		b.WriteString(fmt.Sprintf("%d. %s <b>%s</b> (%s) %.1f | %s\n",
			i+1, categoryIcon(r.Category), html.EscapeString(r.Symbol), r.Market, r.Score, r.Category))
		b.WriteString(fmt.Sprintf("   Close %.4g | RL %.4g | RH %.4g | range %.1f%%\n",
			r.Close, r.Levels.RL, r.Levels.RH, r.Levels.RangePct))
		if r.IsDCA {
			p := r.Plan
			b.WriteString(fmt.Sprintf("   Entry %.4g / stop %.4g | T1 %.4g-%.4g\n",
				p.Entries.Breakout, p.Stops.Breakout, p.Targets.T1.From, p.Targets.T1.To))
		}
	}
	return b.String()
}

// FormatScoreDetail lists every factor of one result.
func FormatScoreDetail(r *model.ScoreResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔎 <b>%s</b> %.1f/100 %s\n\n", html.EscapeString(r.Symbol), r.Score, r.Category))
	for _, f := range r.Breakdown.Factors() {
		b.WriteString(fmt.Sprintf("  %s: %.1f/%.0f (%s)\n", f.Name, f.Score, f.Max, html.EscapeString(f.Commentary)))
	}
	t := r.Plan.Targets
	b.WriteString(fmt.Sprintf("\nT1 %.4g-%.4g | T2 %.4g-%.4g | T3 %.4g-%.4g\n",
		t.T1.From, t.T1.To, t.T2.From, t.T2.To, t.T3.From, t.T3.To))
	return b.String()
}

// FormatPositions formats the reconstructed positions of a portfolio.
func FormatPositions(portfolioID string, positions []model.Position) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📁 <b>Positions</b> | %s\n\n", html.EscapeString(portfolioID)))
	if len(positions) == 0 {
		b.WriteString("No transactions.")
		return b.String()
	}

	for _, p := range positions {
		b.WriteString(fmt.Sprintf("<b>%s</b> qty %.4g @ %.4g = %.2f", html.EscapeString(p.Symbol), p.TotalQuantity, p.AvgPrice, p.TotalCost))
		if p.CurrentPrice != nil {
			b.WriteString(fmt.Sprintf(" | now %.4g", *p.CurrentPrice))
		}
		b.WriteString("\n")
		if p.RealizedCapital > 0 {
			b.WriteString(fmt.Sprintf("   realized %.2f (P/L %+.2f)\n", p.RealizedCapital, p.RealizedProfitLoss))
		}
		if p.TargetPrice != nil {
			b.WriteString(fmt.Sprintf("   target %.4g\n", *p.TargetPrice))
		}
		if p.Condition == model.ConditionOversold {
			b.WriteString("   ⚠️ sells exceed buys\n")
		}
	}
	return b.String()
}

// FormatSummary formats a portfolio summary.
func FormatSummary(portfolioID string, s model.PortfolioSummary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("💼 <b>Portfolio</b> | %s\n\n", html.EscapeString(portfolioID)))
	b.WriteString(fmt.Sprintf("Transactions: %d\n", s.TotalTransactions))
	b.WriteString(fmt.Sprintf("Active positions: %d\n", s.ActivePositions))
	b.WriteString(fmt.Sprintf("Investment: %.2f\n", s.TotalInvestment))
	b.WriteString(fmt.Sprintf("Current value: %.2f\n", s.TotalCurrentValue))
	b.WriteString(fmt.Sprintf("P/L: %+.2f (%+.2f%%)\n", s.TotalProfitLoss, s.TotalProfitLossPercent))
	return b.String()
}

// FormatPortfolios lists an owner's portfolios.
func FormatPortfolios(portfolios []model.Portfolio) string {
	var b strings.Builder
	b.WriteString("🗂 <b>Portfolios</b>\n\n")
	if len(portfolios) == 0 {
		b.WriteString("No portfolios.")
		return b.String()
	}
	for _, p := range portfolios {
		mark := ""
		if p.Primary {
			mark = " ⭐"
		}
		b.WriteString(fmt.Sprintf("<code>%s</code> %s%s | %d tx\n",
			html.EscapeString(p.ID), html.EscapeString(p.Name), mark, len(p.Transactions)))
	}
	return b.String()
}

// FormatTransaction confirms a recorded or updated transaction.
func FormatTransaction(portfolioID string, tx *model.Transaction) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("✅ %s <b>%s</b> %.4g @ %.4g | %s\n",
		strings.ToUpper(string(tx.Type)), html.EscapeString(tx.Symbol), tx.Quantity, tx.Price, html.EscapeString(portfolioID)))
	b.WriteString(fmt.Sprintf("id <code>%s</code>\n", html.EscapeString(tx.ID)))
	if tx.TargetPrice != nil {
		b.WriteString(fmt.Sprintf("target %.4g\n", *tx.TargetPrice))
	}
	if tx.Notes != "" {
		b.WriteString(fmt.Sprintf("note: %s\n", html.EscapeString(tx.Notes)))
	}
	return b.String()
}
