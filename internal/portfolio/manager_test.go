package portfolio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DCAScanner/internal/ledger"
	"DCAScanner/internal/model"
)

// storeFactories builds every Store implementation for the shared tests.
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "portfolio.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"redis": func(t *testing.T) Store {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			t.Cleanup(mr.Close)
			return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		},
	}
}

func newTestManager(store Store) *Manager {
	m := NewManager(store)
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	seq := 0
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	m.newID = func() string {
		seq++
		return fmt.Sprintf("tx-%d", seq)
	}
	return m
}

func ptr(v float64) *float64 { return &v }

func TestManager_Lifecycle(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := newTestManager(factory(t))

			primary, err := m.EnsurePrimary(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "alice_001", primary.ID)
			assert.True(t, primary.Primary)

			again, err := m.EnsurePrimary(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, primary.ID, again.ID)
			assert.True(t, again.CreatedAt.Equal(primary.CreatedAt))

			side, err := m.CreatePortfolio(ctx, "alice", "Swing", "short term")
			require.NoError(t, err)
			assert.Equal(t, "alice_002", side.ID)
			assert.False(t, side.Primary)

			_, err = m.CreatePortfolio(ctx, "bob", "Bob main", "")
			require.NoError(t, err)

			list, err := m.List(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "alice_001", list[0].ID)
			assert.Equal(t, "Swing", list[1].Name)
			assert.Equal(t, "short term", list[1].Description)

			all, err := m.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			err = m.DeletePortfolio(ctx, primary.ID, "alice")
			assert.ErrorIs(t, err, ErrPrimaryPortfolio)

			err = m.DeletePortfolio(ctx, side.ID, "bob")
			assert.ErrorIs(t, err, ErrNotOwner)

			require.NoError(t, m.DeletePortfolio(ctx, side.ID, "alice"))
			_, err = m.Get(ctx, side.ID)
			assert.ErrorIs(t, err, ErrPortfolioNotFound)

			err = m.DeletePortfolio(ctx, "nobody_009", "alice")
			assert.ErrorIs(t, err, ErrPortfolioNotFound)

			// The freed number is reused.
			reused, err := m.CreatePortfolio(ctx, "alice", "Again", "")
			require.NoError(t, err)
			assert.Equal(t, "alice_002", reused.ID)
		})
	}
}

func TestManager_TransactionsAndPositions(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := newTestManager(factory(t))

			p, err := m.EnsurePrimary(ctx, "alice")
			require.NoError(t, err)

			inputs := []TransactionInput{
				{Symbol: "btcusdt", Market: model.MarketCrypto, Type: model.TransactionBuy, Price: 100, Quantity: 10},
				{Symbol: "BTCUSDT", Market: model.MarketCrypto, Type: model.TransactionBuy, Price: 200, Quantity: 10, TargetPrice: ptr(400)},
				{Symbol: "BTCUSDT", Market: model.MarketCrypto, Type: "SELL", Price: 300, Quantity: 5},
				{Symbol: "thyao", Market: model.MarketBIST, Type: model.TransactionBuy, Price: 50, Quantity: 40, Notes: "core"},
			}
			for _, in := range inputs {
				_, err := m.AddTransaction(ctx, p.ID, "alice", in)
				require.NoError(t, err)
			}

			loaded, err := m.Get(ctx, p.ID)
			require.NoError(t, err)
			require.Len(t, loaded.Transactions, 4)
			assert.Equal(t, "tx-1", loaded.Transactions[0].ID)
			assert.Equal(t, "BTCUSDT", loaded.Transactions[0].Symbol)
			assert.Equal(t, model.TransactionSell, loaded.Transactions[2].Type)
			require.NotNil(t, loaded.Transactions[1].TargetPrice)
			assert.Equal(t, 400.0, *loaded.Transactions[1].TargetPrice)

			symbols, err := m.Symbols(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, map[string]model.Market{"BTCUSDT": model.MarketCrypto, "THYAO": model.MarketBIST}, symbols)

			positions, err := m.Positions(ctx, p.ID, map[string]float64{"BTCUSDT": 220})
			require.NoError(t, err)
			require.Len(t, positions, 2)

			btc := positions[0]
			assert.Equal(t, "BTCUSDT", btc.Symbol)
			assert.InDelta(t, 15, btc.TotalQuantity, 1e-9)
			assert.InDelta(t, 2250, btc.TotalCost, 1e-9)
			assert.InDelta(t, 1500, btc.RealizedCapital, 1e-9)
			require.NotNil(t, btc.TargetPrice)
			assert.Equal(t, 400.0, *btc.TargetPrice)

			summary, _, err := m.Summary(ctx, p.ID, map[string]float64{"BTCUSDT": 220, "THYAO": 55})
			require.NoError(t, err)
			assert.Equal(t, 4, summary.TotalTransactions)
			assert.Equal(t, 2, summary.ActivePositions)
			assert.InDelta(t, 4250, summary.TotalInvestment, 1e-9)
			assert.InDelta(t, 3300+2200, summary.TotalCurrentValue, 1e-9)
			assert.InDelta(t, 1250, summary.TotalProfitLoss, 1e-9)
		})
	}
}

func TestManager_AddTransactionErrors(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := newTestManager(s)
	p, err := m.EnsurePrimary(ctx, "alice")
	require.NoError(t, err)

	_, err = m.AddTransaction(ctx, p.ID, "alice", TransactionInput{Symbol: "X", Type: model.TransactionBuy, Price: 10, Quantity: 0})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)

	_, err = m.AddTransaction(ctx, p.ID, "alice", TransactionInput{Symbol: "X", Type: "hold", Price: 10, Quantity: 1})
	assert.ErrorIs(t, err, ledger.ErrInvalidTransaction)

	_, err = m.AddTransaction(ctx, p.ID, "mallory", TransactionInput{Symbol: "X", Type: model.TransactionBuy, Price: 10, Quantity: 1})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = m.AddTransaction(ctx, "alice_007", "alice", TransactionInput{Symbol: "X", Type: model.TransactionBuy, Price: 10, Quantity: 1})
	assert.ErrorIs(t, err, ErrPortfolioNotFound)

	loaded, err := m.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Transactions)
}

func TestManager_UpdateAdvisory(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := newTestManager(s)
	p, err := m.EnsurePrimary(ctx, "alice")
	require.NoError(t, err)

	tx, err := m.AddTransaction(ctx, p.ID, "alice", TransactionInput{Symbol: "ETH", Type: model.TransactionBuy, Price: 10, Quantity: 1})
	require.NoError(t, err)

	notes := "trim at target"
	updated, err := m.UpdateAdvisory(ctx, p.ID, "alice", tx.ID, ptr(15), &notes)
	require.NoError(t, err)
	assert.Equal(t, 15.0, *updated.TargetPrice)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, tx.Price, updated.Price)

	updated, err = m.UpdateAdvisory(ctx, p.ID, "alice", tx.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 15.0, *updated.TargetPrice)

	_, err = m.UpdateAdvisory(ctx, p.ID, "alice", "missing", nil, &notes)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	_, err = m.UpdateAdvisory(ctx, p.ID, "bob", tx.ID, nil, &notes)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestManager_FindTransaction(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := newTestManager(s)

	_, err = m.EnsurePrimary(ctx, "alice")
	require.NoError(t, err)
	side, err := m.CreatePortfolio(ctx, "alice", "Side", "")
	require.NoError(t, err)
	tx, err := m.AddTransaction(ctx, side.ID, "alice", TransactionInput{Symbol: "SOL", Type: model.TransactionBuy, Price: 20, Quantity: 3})
	require.NoError(t, err)

	id, err := m.FindTransaction(ctx, "alice", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, side.ID, id)

	_, err = m.FindTransaction(ctx, "bob", tx.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestManager_PortfolioLimit(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := newTestManager(s)

	for i := 0; i < MaxPortfolios; i++ {
		_, err := m.CreatePortfolio(ctx, "alice", fmt.Sprintf("p%d", i), "")
		require.NoError(t, err)
	}
	_, err = m.CreatePortfolio(ctx, "alice", "one too many", "")
	assert.True(t, errors.Is(err, ErrPortfolioLimit))
}

func TestManager_OversoldPosition(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	m := newTestManager(s)
	p, err := m.EnsurePrimary(ctx, "alice")
	require.NoError(t, err)

	_, err = m.AddTransaction(ctx, p.ID, "alice", TransactionInput{Symbol: "SOL", Type: model.TransactionBuy, Price: 10, Quantity: 2})
	require.NoError(t, err)
	_, err = m.AddTransaction(ctx, p.ID, "alice", TransactionInput{Symbol: "SOL", Type: model.TransactionSell, Price: 12, Quantity: 3})
	require.NoError(t, err)

	summary, positions, err := m.Summary(ctx, p.ID, nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, model.ConditionOversold, positions[0].Condition)
	assert.Equal(t, 0, summary.ActivePositions)
	assert.Equal(t, 2, summary.TotalTransactions)
}
