package model

import "time"

// TransactionType is the side of a transaction.
type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

// Transaction is one append-only entry of a portfolio's log.
// Only TargetPrice and Notes may change after creation.
type Transaction struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Market      Market          `json:"market"`
	Type        TransactionType `json:"transaction_type"`
	Price       float64         `json:"price"`
	Quantity    float64         `json:"quantity"`
	Timestamp   time.Time       `json:"date"`
	TargetPrice *float64        `json:"target_price,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

// Portfolio owns an ordered transaction log.
type Portfolio struct {
	ID           string        `json:"portfolio_id"`
	Name         string        `json:"portfolio_name"`
	Description  string        `json:"portfolio_description,omitempty"`
	Owner        string        `json:"owner_username"`
	Primary      bool          `json:"primary"`
	CreatedAt    time.Time     `json:"created_at"`
	Transactions []Transaction `json:"transactions"`
}

// PositionCondition flags the state a replay ended in.
type PositionCondition string

const (
	ConditionOpen PositionCondition = "open"
	ConditionFlat PositionCondition = "flat"
	// ConditionOversold means recorded sells exceed recorded buys.
	ConditionOversold PositionCondition = "oversold"
)

// Position is derived from a transaction log and never stored.
type Position struct {
	Symbol             string
	Market             Market
	TotalQuantity      float64
	AvgPrice           float64
	TotalCost          float64
	RealizedCapital    float64
	RealizedProfitLoss float64
	RealizedPercentage float64
	UnrealizedCapital  float64
	CurrentPrice       *float64
	TargetPrice        *float64
	Notes              string
	LastTransactionAt  time.Time
	TransactionCount   int
	Condition          PositionCondition
}

// Active reports whether the position is counted as held.
func (p Position) Active() bool { return p.TotalQuantity > 0 }

// PortfolioSummary aggregates the active positions of a portfolio.
type PortfolioSummary struct {
	TotalTransactions      int
	ActivePositions        int
	TotalInvestment        float64
	TotalCurrentValue      float64
	TotalProfitLoss        float64
	TotalProfitLossPercent float64
}
