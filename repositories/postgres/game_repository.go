package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/repositories"
	"go.uber.org/zap"
)

// GameRepository implements the repositories.GameRepository interface
type GameRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *DB, logger *zap.Logger) repositories.GameRepository {
	return &GameRepository{
		db:     db,
		logger: logger,
	}
}

// List returns the whole catalog
func (r *GameRepository) List(ctx context.Context) ([]*models.Game, error) {
	query := `
		SELECT id, name, description, created_at
		FROM games
		ORDER BY id
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		game := &models.Game{}
		if err := rows.Scan(&game.ID, &game.Name, &game.Description, &game.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game rows: %w", err)
	}

	return games, nil
}

// GetByID retrieves a game by ID
func (r *GameRepository) GetByID(ctx context.Context, id int) (*models.Game, error) {
	query := `
		SELECT id, name, description, created_at
		FROM games
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	game := &models.Game{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&game.ID,
		&game.Name,
		&game.Description,
		&game.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("game %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

// Create inserts a game with an explicit id
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	query := `
		INSERT INTO games (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query,
		game.ID,
		game.Name,
		game.Description,
		game.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	r.logger.Debug("game created", zap.Int("id", game.ID))
	return nil
}
