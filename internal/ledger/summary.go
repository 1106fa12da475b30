package ledger

import "DCAScanner/internal/model"

// AggregatePortfolio sums the active positions into portfolio totals.
// Positions with quantity <= 0 still count towards TotalTransactions.
func AggregatePortfolio(positions []model.Position) model.PortfolioSummary {
	var s model.PortfolioSummary
	for _, p := range positions {
		s.TotalTransactions += p.TransactionCount
		if !p.Active() {
			continue
		}
		s.ActivePositions++
		s.TotalInvestment += p.TotalCost
		if p.CurrentPrice != nil {
			value := *p.CurrentPrice * p.TotalQuantity
			s.TotalCurrentValue += value
			s.TotalProfitLoss += value - p.TotalCost
		}
	}
	if s.TotalInvestment > 0 {
		s.TotalProfitLossPercent = s.TotalProfitLoss / s.TotalInvestment * 100
	}
	return s
}
