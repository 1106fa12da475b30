package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"DCAScanner/internal/ledger"
	"DCAScanner/internal/model"
)

// MaxPortfolios is the per-owner portfolio cap.
const MaxPortfolios = 20

// TransactionInput carries the caller-supplied fields of a new transaction.
type TransactionInput struct {
	Symbol      string
	Market      model.Market
	Type        model.TransactionType
	Price       float64
	Quantity    float64
	TargetPrice *float64
	Notes       string
}

// Manager handles portfolio operations with concurrency safety.
type Manager struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
	newID func() string
}

// NewManager creates a Manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// numberedID numbers portfolios per owner; number 1 is the primary one.
func numberedID(owner string, n int) string {
	return fmt.Sprintf("%s_%03d", owner, n)
}

// EnsurePrimary returns the owner's primary portfolio, creating it if needed.
func (m *Manager) EnsurePrimary(ctx context.Context, owner string) (*model.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := numberedID(owner, 1)
	p, err := m.store.Load(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPortfolioNotFound) {
		return nil, err
	}

	p = &model.Portfolio{
		ID:        id,
		Name:      "Main",
		Owner:     owner,
		Primary:   true,
		CreatedAt: m.now().UTC(),
	}
	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save primary portfolio: %w", err)
	}
	log.Printf("[INFO] created primary portfolio %s for %s", id, owner)
	return p, nil
}

// CreatePortfolio allocates the owner's lowest free portfolio number.
func (m *Manager) CreatePortfolio(ctx context.Context, owner, name, description string) (*model.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool)
	for _, p := range all {
		if p.Owner == owner {
			used[p.ID] = true
		}
	}

	n := 0
	for i := 1; i <= MaxPortfolios; i++ {
		if !used[numberedID(owner, i)] {
			n = i
			break
		}
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", owner, ErrPortfolioLimit)
	}

	p := &model.Portfolio{
		ID:          numberedID(owner, n),
		Name:        name,
		Description: description,
		Owner:       owner,
		Primary:     n == 1,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save portfolio: %w", err)
	}
	return p, nil
}

// DeletePortfolio removes a non-primary portfolio owned by requester.
func (m *Manager) DeletePortfolio(ctx context.Context, id, requester string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if p.Primary {
		return fmt.Errorf("%s: %w", id, ErrPrimaryPortfolio)
	}
	if p.Owner != requester {
		return fmt.Errorf("%s: %w", id, ErrNotOwner)
	}
	return m.store.Delete(ctx, id)
}

// List returns the owner's portfolios ordered by id, or every portfolio
// when owner is empty.
func (m *Manager) List(ctx context.Context, owner string) ([]model.Portfolio, error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if owner == "" || p.Owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get loads a portfolio with its transactions.
func (m *Manager) Get(ctx context.Context, id string) (*model.Portfolio, error) {
	return m.store.Load(ctx, id)
}

// FindTransaction returns the id of the owner's portfolio holding txID.
func (m *Manager) FindTransaction(ctx context.Context, owner, txID string) (string, error) {
	all, err := m.List(ctx, owner)
	if err != nil {
		return "", err
	}
	for _, p := range all {
		for _, tx := range p.Transactions {
			if tx.ID == txID {
				return p.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", txID, ErrTransactionNotFound)
}

// AddTransaction validates and appends a transaction to the portfolio log.
func (m *Manager) AddTransaction(ctx context.Context, portfolioID, requester string, in TransactionInput) (*model.Transaction, error) {
	tx := model.Transaction{
		ID:        m.newID(),
		Symbol:    strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Market:    in.Market,
		Type:      model.TransactionType(strings.ToLower(string(in.Type))),
		Price:     in.Price,
		Quantity:  in.Quantity,
		Timestamp: m.now().UTC(),
		Notes:     in.Notes,
	}
	if in.TargetPrice != nil {
		v := *in.TargetPrice
		tx.TargetPrice = &v
	}
	if err := ledger.Validate(tx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.Load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p.Owner != requester {
		return nil, fmt.Errorf("%s: %w", portfolioID, ErrNotOwner)
	}
	p.Transactions = append(p.Transactions, tx)
	if err := m.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save portfolio: %w", err)
	}
	return &tx, nil
}

// UpdateAdvisory changes the target price and/or notes of a transaction.
// Nil arguments leave the field untouched.
func (m *Manager) UpdateAdvisory(ctx context.Context, portfolioID, requester, txID string, targetPrice *float64, notes *string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.Load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p.Owner != requester {
		return nil, fmt.Errorf("%s: %w", portfolioID, ErrNotOwner)
	}

	for i := range p.Transactions {
		tx := &p.Transactions[i]
		if tx.ID != txID {
			continue
		}
		if targetPrice != nil {
			v := *targetPrice
			tx.TargetPrice = &v
		}
		if notes != nil {
			tx.Notes = *notes
		}
		if err := m.store.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("save portfolio: %w", err)
		}
		out := *tx
		return &out, nil
	}
	return nil, fmt.Errorf("%s: %w", txID, ErrTransactionNotFound)
}

// Symbols returns the distinct symbols held in a portfolio with their market.
func (m *Manager) Symbols(ctx context.Context, portfolioID string) (map[string]model.Market, error) {
	p, err := m.store.Load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Market)
	for _, tx := range p.Transactions {
		out[strings.ToUpper(tx.Symbol)] = tx.Market
	}
	return out, nil
}

// Positions replays the portfolio log into one position per symbol.
// prices maps upper-case symbols to current quotes and may be nil.
func (m *Manager) Positions(ctx context.Context, portfolioID string, prices map[string]float64) ([]model.Position, error) {
	p, err := m.store.Load(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	positions, err := ledger.ReconstructPositions(p.Transactions, prices)
	if err != nil {
		return nil, fmt.Errorf("reconstruct %s: %w", portfolioID, err)
	}
	for _, pos := range positions {
		if pos.Condition == model.ConditionOversold {
			log.Printf("[WARN] portfolio %s: %s sold %.4f more than bought", portfolioID, pos.Symbol, -pos.TotalQuantity)
		}
	}
	return positions, nil
}

// Summary aggregates the active positions of a portfolio.
func (m *Manager) Summary(ctx context.Context, portfolioID string, prices map[string]float64) (model.PortfolioSummary, []model.Position, error) {
	positions, err := m.Positions(ctx, portfolioID, prices)
	if err != nil {
		return model.PortfolioSummary{}, nil, err
	}
	return ledger.AggregatePortfolio(positions), positions, nil
}
