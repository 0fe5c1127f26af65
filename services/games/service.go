package games

import (
	"context"
	"errors"
	"math"

	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/repositories"
	"github.com/upb/dino-games/backend/services"
	"go.uber.org/zap"
)

// RecentScoresLimit is how many scores a player's history and statistics cover
const RecentScoresLimit = 10

// SaveScoreInput is a finished game submitted by a player. Every field must be
// greater than zero.
type SaveScoreInput struct {
	GameID          int `json:"juegoId" validate:"required,gt=0"`
	Points          int `json:"puntuacion" validate:"required,gt=0"`
	DurationSeconds int `json:"tiempo" validate:"required,gt=0"`
	Attempts        int `json:"intentos" validate:"required,gt=0"`
}

// Validate reports ErrIncompleteScore when any field is missing or not positive
func (in SaveScoreInput) Validate() error {
	if in.GameID <= 0 || in.Points <= 0 || in.DurationSeconds <= 0 || in.Attempts <= 0 {
		return services.ErrIncompleteScore
	}
	return nil
}

// Service manages the game catalog and player scores
type Service struct {
	users  repositories.UserRepository
	games  repositories.GameRepository
	scores repositories.ScoreRepository
	txMgr  repositories.TransactionManager
	logger *zap.Logger
}

// NewService creates a new games service
func NewService(repos *repositories.Repositories, txMgr repositories.TransactionManager, logger *zap.Logger) *Service {
	return &Service{
		users:  repos.Users,
		games:  repos.Games,
		scores: repos.Scores,
		txMgr:  txMgr,
		logger: logger,
	}
}

// ListGames returns the catalog. Only the playable game is marked available.
// An empty table yields the default catalog; a failing store yields only the
// playable game so players can keep playing.
func (s *Service) ListGames(ctx context.Context) []models.GameView {
	stored, err := s.games.List(ctx)
	if err != nil {
		s.logger.Error("failed to list games", zap.Error(err))
		return models.DefaultGames()[:1]
	}

	if len(stored) == 0 {
		return models.DefaultGames()
	}

	views := make([]models.GameView, 0, len(stored))
	for _, g := range stored {
		views = append(views, g.View())
	}
	return views
}

// SaveScore records a score for the player identified by email. The local user
// and the game row are created on first use, all in one transaction.
func (s *Service) SaveScore(ctx context.Context, email string, in SaveScoreInput) (*models.Score, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	score, err := services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*models.Score, error) {
		user, err := s.findOrCreateUser(ctx, email)
		if err != nil {
			return nil, err
		}

		if err := s.ensureGame(ctx, in.GameID); err != nil {
			return nil, err
		}

		score := models.NewScore(user.ID, in.GameID, in.Points, in.DurationSeconds, in.Attempts)
		if err := s.scores.Create(ctx, score); err != nil {
			return nil, err
		}
		return score, nil
	})
	if err != nil {
		s.logger.Error("failed to save score",
			zap.Int("game_id", in.GameID),
			zap.Error(err))
		return nil, services.WrapInternal("failed to save score", err)
	}

	s.logger.Info("score saved",
		zap.String("score_id", score.ID.String()),
		zap.Int("game_id", score.GameID),
		zap.Int("points", score.Points))

	return score, nil
}

// ListUserScores returns the player's most recent scores, newest first. A
// player without a local record has no scores.
func (s *Service) ListUserScores(ctx context.Context, email string) ([]*models.ScoreView, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return []*models.ScoreView{}, nil
		}
		return nil, services.WrapInternal("failed to list scores", err)
	}

	scores, err := s.scores.ListRecentByUser(ctx, user.ID, RecentScoresLimit)
	if err != nil {
		return nil, services.WrapInternal("failed to list scores", err)
	}
	return scores, nil
}

// Stats summarizes the player's recent scores
func (s *Service) Stats(ctx context.Context, email string) (*models.ScoreStats, error) {
	scores, err := s.ListUserScores(ctx, email)
	if err != nil {
		return nil, err
	}
	return Summarize(scores), nil
}

// Summarize computes statistics over scores ordered newest first
func Summarize(scores []*models.ScoreView) *models.ScoreStats {
	stats := &models.ScoreStats{TotalGames: len(scores)}
	if len(scores) == 0 {
		return stats
	}

	total := 0
	for _, sc := range scores {
		total += sc.Points
		if sc.Points > stats.BestPoints {
			stats.BestPoints = sc.Points
		}
	}
	stats.AveragePoints = int(math.Round(float64(total) / float64(len(scores))))
	last := scores[0].PlayedAt
	stats.LastPlayedAt = &last

	return stats
}

func (s *Service) findOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	if err := s.users.Create(ctx, models.NewUser("", email)); err != nil {
		return nil, err
	}
	// Re-read: a concurrent insert may have won the unique email.
	return s.users.GetByEmail(ctx, email)
}

func (s *Service) ensureGame(ctx context.Context, id int) error {
	_, err := s.games.GetByID(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	return s.games.Create(ctx, models.NewGame(id))
}
