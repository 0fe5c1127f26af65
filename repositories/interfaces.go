package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/dino-games/backend/models"
)

// ErrNotFound is wrapped by repositories when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Commits if fn returns nil, rolls back on error or panic.
	// Repositories called with the ctx passed to fn join the transaction.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// UserRepository handles local user rows
type UserRepository interface {
	// Create inserts the user; an existing row with the same email is left untouched
	Create(ctx context.Context, user *models.User) error

	// GetByEmail retrieves a user by email, wrapping ErrNotFound when absent
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// GameRepository handles the game catalog
type GameRepository interface {
	// List returns every game ordered by id
	List(ctx context.Context) ([]*models.Game, error)

	// GetByID retrieves a game, wrapping ErrNotFound when absent
	GetByID(ctx context.Context, id int) (*models.Game, error)

	// Create inserts the game; an existing row with the same id is left untouched
	Create(ctx context.Context, game *models.Game) error
}

// ScoreRepository handles recorded scores
type ScoreRepository interface {
	// Create inserts a new score
	Create(ctx context.Context, score *models.Score) error

	// ListRecentByUser returns up to limit scores of the user, newest first
	ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ScoreView, error)
}

// Repositories bundles every repository
type Repositories struct {
	Users  UserRepository
	Games  GameRepository
	Scores ScoreRepository
}
