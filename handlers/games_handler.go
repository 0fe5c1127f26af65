package handlers

import (
	"context"
	"net/http"

	"github.com/upb/dino-games/backend/internal/observability"
	"github.com/upb/dino-games/backend/middleware"
	"github.com/upb/dino-games/backend/models"
	"github.com/upb/dino-games/backend/services"
	"github.com/upb/dino-games/backend/services/games"
	"github.com/upb/dino-games/backend/utils"
	"go.uber.org/zap"
)

// GamesService defines the game and score operations exposed under /api/juegos
type GamesService interface {
	ListGames(ctx context.Context) []models.GameView
	SaveScore(ctx context.Context, email string, in games.SaveScoreInput) (*models.Score, error)
	ListUserScores(ctx context.Context, email string) ([]*models.ScoreView, error)
	Stats(ctx context.Context, email string) (*models.ScoreStats, error)
}

// PlayerView is the verified player echoed back with the catalog
type PlayerView struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// GamesListResponse is the body of GET /api/juegos
type GamesListResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    PlayerView        `json:"user"`
	Games   []models.GameView `json:"juegos"`
}

// SaveScoreResponse is the body of POST /api/juegos/puntaje
type SaveScoreResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Score   *models.Score `json:"puntaje"`
}

// ScoresResponse is the body of GET /api/juegos/mis-puntajes
type ScoresResponse struct {
	Success bool                `json:"success"`
	Scores  []*models.ScoreView `json:"puntajes"`
}

// StatsResponse is the body of GET /api/juegos/estadisticas
type StatsResponse struct {
	Success bool               `json:"success"`
	Stats   *models.ScoreStats `json:"estadisticas"`
}

// GamesHandler handles game catalog and score endpoints. Every route requires
// a verified email, so the profile is always in the request context.
type GamesHandler struct {
	games  GamesService
	logger *zap.Logger
}

// NewGamesHandler creates a new GamesHandler
func NewGamesHandler(games GamesService, logger *zap.Logger) *GamesHandler {
	return &GamesHandler{
		games:  games,
		logger: logger,
	}
}

// HandleListGames handles GET /api/juegos
func (h *GamesHandler) HandleListGames(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.profile(w, r)
	if !ok {
		return
	}

	_ = utils.WriteOK(w, GamesListResponse{
		Success: true,
		Message: "Available games",
		User: PlayerView{
			Email:         profile.Email,
			EmailVerified: profile.EmailVerified,
		},
		Games: h.games.ListGames(r.Context()),
	})
}

// HandleSaveScore handles POST /api/juegos/puntaje
func (h *GamesHandler) HandleSaveScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.RequestLogger(ctx, h.logger)

	profile, ok := h.profile(w, r)
	if !ok {
		return
	}

	var in games.SaveScoreInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		if utils.IsValidationError(err) {
			_ = utils.WriteBadRequest(w, services.ErrIncompleteScore.Message, utils.FieldDetails(err))
			return
		}
		HandleValidationError(w, err, logger)
		return
	}

	score, err := h.games.SaveScore(ctx, profile.Email, in)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	_ = utils.WriteCreated(w, SaveScoreResponse{
		Success: true,
		Message: "Score saved",
		Score:   score,
	})
}

// HandleListScores handles GET /api/juegos/mis-puntajes
func (h *GamesHandler) HandleListScores(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, ok := h.profile(w, r)
	if !ok {
		return
	}

	scores, err := h.games.ListUserScores(ctx, profile.Email)
	if err != nil {
		HandleServiceError(w, err, observability.RequestLogger(ctx, h.logger))
		return
	}

	_ = utils.WriteOK(w, ScoresResponse{Success: true, Scores: scores})
}

// HandleStats handles GET /api/juegos/estadisticas
func (h *GamesHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, ok := h.profile(w, r)
	if !ok {
		return
	}

	stats, err := h.games.Stats(ctx, profile.Email)
	if err != nil {
		HandleServiceError(w, err, observability.RequestLogger(ctx, h.logger))
		return
	}

	_ = utils.WriteOK(w, StatsResponse{Success: true, Stats: stats})
}

func (h *GamesHandler) profile(w http.ResponseWriter, r *http.Request) (*models.UserProfile, bool) {
	profile := middleware.GetUserProfileFromContext(r.Context())
	if profile == nil {
		h.logger.Error("user profile not found in context")
		_ = utils.WriteForbidden(w, "Unable to verify email status")
		return nil, false
	}
	return profile, true
}
