package models

import (
	"time"

	"github.com/google/uuid"
)

// Score is a single finished game
type Score struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"-" db:"user_id"`
	GameID          int       `json:"juegoId" db:"game_id"`
	Points          int       `json:"puntuacion" db:"points"`
	DurationSeconds int       `json:"tiempo" db:"duration_seconds"`
	Attempts        int       `json:"intentos" db:"attempts"`
	PlayedAt        time.Time `json:"fecha" db:"played_at"`
}

// TableName returns the table name for the Score model
func (Score) TableName() string {
	return "scores"
}

// NewScore creates a new Score instance played now
func NewScore(userID uuid.UUID, gameID, points, durationSeconds, attempts int) *Score {
	return &Score{
		ID:              uuid.New(),
		UserID:          userID,
		GameID:          gameID,
		Points:          points,
		DurationSeconds: durationSeconds,
		Attempts:        attempts,
		PlayedAt:        time.Now().UTC(),
	}
}

// ScoreView is a score joined with its game name
type ScoreView struct {
	ID       uuid.UUID `json:"id"`
	GameID   int       `json:"juegoId"`
	GameName string    `json:"nombreJuego"`
	Points   int       `json:"puntuacion"`
	PlayedAt time.Time `json:"fecha"`
}

// ScoreStats summarizes a player's recent scores
type ScoreStats struct {
	TotalGames    int        `json:"totalJuegos"`
	AveragePoints int        `json:"puntuacionPromedio"`
	BestPoints    int        `json:"mejorPuntaje"`
	LastPlayedAt  *time.Time `json:"ultimoJuego"`
}
