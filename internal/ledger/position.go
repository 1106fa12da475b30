package ledger

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"DCAScanner/internal/model"
)

// Validate checks the fields the replay depends on.
func Validate(tx model.Transaction) error {
	switch tx.Type {
	case model.TransactionBuy, model.TransactionSell:
	default:
		return &InvalidTransactionError{ID: tx.ID, Reason: "unknown type " + string(tx.Type)}
	}
	if !positive(tx.Quantity) {
		return &InvalidTransactionError{ID: tx.ID, Reason: "quantity must be positive"}
	}
	if !positive(tx.Price) {
		return &InvalidTransactionError{ID: tx.ID, Reason: "price must be positive"}
	}
	if strings.TrimSpace(tx.Symbol) == "" {
		return &InvalidTransactionError{ID: tx.ID, Reason: "symbol is required"}
	}
	return nil
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

// replayState is the running blended-average state of one symbol.
type replayState struct {
	quantity decimal.Decimal
	avgPrice decimal.Decimal
	cost     decimal.Decimal
}

func (st *replayState) buy(price, qty decimal.Decimal) {
	newCost := st.cost.Add(price.Mul(qty))
	newQty := st.quantity.Add(qty)
	if newQty.IsPositive() {
		st.avgPrice = newCost.Div(newQty)
	}
	st.cost = newCost
	st.quantity = newQty
}

// sell keeps the average price and re-derives the remaining cost from it.
func (st *replayState) sell(qty decimal.Decimal) {
	st.quantity = st.quantity.Sub(qty)
	st.cost = st.avgPrice.Mul(st.quantity)
}

// ReconstructPosition replays the transactions of symbol in timestamp order
// and returns the resulting blended-cost position. Transactions for other
// symbols are ignored. currentPrice may be nil when no quote is known.
//
// When sells exceed buys the position is returned with ConditionOversold,
// a negative quantity, and cost and average price floored to zero.
func ReconstructPosition(symbol string, txs []model.Transaction, currentPrice *float64) (*model.Position, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var own []model.Transaction
	for _, tx := range txs {
		if strings.EqualFold(tx.Symbol, symbol) {
			if err := Validate(tx); err != nil {
				return nil, err
			}
			own = append(own, tx)
		}
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].Timestamp.Before(own[j].Timestamp) })

	pos := &model.Position{Symbol: symbol, TransactionCount: len(own)}

	var (
		st              replayState
		realizedCapital decimal.Decimal
		totalBuyCost    decimal.Decimal
		soldQuantity    decimal.Decimal
	)
	for _, tx := range own {
		price := decimal.NewFromFloat(tx.Price)
		qty := decimal.NewFromFloat(tx.Quantity)

		switch tx.Type {
		case model.TransactionBuy:
			st.buy(price, qty)
			totalBuyCost = totalBuyCost.Add(price.Mul(qty))
		case model.TransactionSell:
			st.sell(qty)
			realizedCapital = realizedCapital.Add(price.Mul(qty))
			soldQuantity = soldQuantity.Add(qty)
		}

		if pos.Market == "" {
			pos.Market = tx.Market
		}
		if tx.TargetPrice != nil {
			tp := *tx.TargetPrice
			pos.TargetPrice = &tp
		}
		if tx.Notes != "" {
			pos.Notes = tx.Notes
		}
		if tx.Timestamp.After(pos.LastTransactionAt) {
			pos.LastTransactionAt = tx.Timestamp
		}
	}

	if st.cost.IsNegative() {
		st.cost = decimal.Zero
		st.avgPrice = decimal.Zero
	}

	switch {
	case st.quantity.IsPositive():
		pos.Condition = model.ConditionOpen
	case st.quantity.IsNegative():
		pos.Condition = model.ConditionOversold
	default:
		pos.Condition = model.ConditionFlat
	}

	unrealized := st.avgPrice.Mul(st.quantity)
	if currentPrice != nil {
		cp := *currentPrice
		pos.CurrentPrice = &cp
		unrealized = decimal.NewFromFloat(cp).Mul(st.quantity)
	}

	pos.TotalQuantity = st.quantity.InexactFloat64()
	pos.AvgPrice = st.avgPrice.InexactFloat64()
	pos.TotalCost = st.cost.InexactFloat64()
	pos.RealizedCapital = realizedCapital.InexactFloat64()
	pos.UnrealizedCapital = unrealized.InexactFloat64()
	pos.RealizedProfitLoss = realizedProfitLoss(totalBuyCost, realizedCapital, soldQuantity, st.quantity).InexactFloat64()

	invested := st.cost.Add(realizedCapital)
	if invested.IsPositive() {
		pos.RealizedPercentage = realizedCapital.Div(invested).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return pos, nil
}

// realizedProfitLoss approximates the cost of sold units with the average
// price over every buy, not the average in effect at each sale.
func realizedProfitLoss(totalBuyCost, sellRevenue, soldQty, remainingQty decimal.Decimal) decimal.Decimal {
	if !sellRevenue.IsPositive() || !soldQty.IsPositive() {
		return decimal.Zero
	}
	boughtQty := remainingQty.Add(soldQty)
	if !boughtQty.IsPositive() {
		return decimal.Zero
	}
	avgBuy := totalBuyCost.Div(boughtQty)
	return sellRevenue.Sub(avgBuy.Mul(soldQty))
}

// ReconstructPositions replays every symbol found in txs and returns the
// positions ordered by symbol. prices maps upper-case symbols to quotes.
func ReconstructPositions(txs []model.Transaction, prices map[string]float64) ([]model.Position, error) {
	seen := make(map[string]bool)
	var symbols []string
	for _, tx := range txs {
		sym := strings.ToUpper(strings.TrimSpace(tx.Symbol))
		if !seen[sym] {
			seen[sym] = true
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	positions := make([]model.Position, 0, len(symbols))
	for _, sym := range symbols {
		var cp *float64
		if p, ok := prices[sym]; ok && p > 0 {
			cp = &p
		}
		pos, err := ReconstructPosition(sym, txs, cp)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *pos)
	}
	return positions, nil
}
