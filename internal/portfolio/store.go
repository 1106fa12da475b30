package portfolio

import (
	"context"
	"errors"

	"DCAScanner/internal/model"
)

var (
	ErrPortfolioNotFound   = errors.New("portfolio not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPrimaryPortfolio    = errors.New("primary portfolio cannot be deleted")
	ErrNotOwner            = errors.New("portfolio belongs to another owner")
	ErrPortfolioLimit      = errors.New("portfolio limit reached")
)

// Store persists whole portfolios. It makes no atomicity promise across
// calls; the Manager serialises read-modify-write cycles.
type Store interface {
	// Load returns ErrPortfolioNotFound when id is unknown.
	Load(ctx context.Context, id string) (*model.Portfolio, error)
	Save(ctx context.Context, p *model.Portfolio) error
	// Delete returns ErrPortfolioNotFound when id is unknown.
	Delete(ctx context.Context, id string) error
	// List returns every portfolio without its transactions.
	List(ctx context.Context) ([]model.Portfolio, error)
	Close() error
}
