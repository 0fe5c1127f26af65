package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/repositories"
	"go.uber.org/zap"
)

// ScoreRepository implements the repositories.ScoreRepository interface
type ScoreRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *DB, logger *zap.Logger) repositories.ScoreRepository {
	return &ScoreRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new score
func (r *ScoreRepository) Create(ctx context.Context, score *models.Score) error {
	query := `
		INSERT INTO scores (id, user_id, game_id, points, duration_seconds, attempts, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		score.ID,
		score.UserID,
		score.GameID,
		score.Points,
		score.DurationSeconds,
		score.Attempts,
		score.PlayedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create score: %w", err)
	}

	r.logger.Debug("score created",
		zap.String("id", score.ID.String()),
		zap.Int("game_id", score.GameID))
	return nil
}

// ListRecentByUser returns the user's latest scores joined with the game name
func (r *ScoreRepository) ListRecentByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ScoreView, error) {
	query := `
		SELECT s.id, s.game_id, g.name, s.points, s.played_at
		FROM scores s
		JOIN games g ON g.id = s.game_id
		WHERE s.user_id = $1
		ORDER BY s.played_at DESC
		LIMIT $2
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	scores := make([]*models.ScoreView, 0, limit)
	for rows.Next() {
		view := &models.ScoreView{}
		if err := rows.Scan(&view.ID, &view.GameID, &view.GameName, &view.Points, &view.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score rows: %w", err)
	}

	return scores, nil
}
