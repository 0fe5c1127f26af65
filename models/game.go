package models

import "time"

// PlayableGameID is the only game that can currently be played
const PlayableGameID = 1

// Game is a game score can be recorded for
type Game struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"nombre" db:"name"`
	Description string    `json:"descripcion" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Game model
func (Game) TableName() string {
	return "games"
}

// GameView is the catalog entry returned to players
type GameView struct {
	ID          int    `json:"id"`
	Name        string `json:"nombre"`
	Description string `json:"descripcion"`
	Available   bool   `json:"disponible"`
}

// View converts a stored game into its catalog entry
func (g *Game) View() GameView {
	return GameView{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Available:   g.ID == PlayableGameID,
	}
}

// DefaultGames is the catalog served while the games table is empty
func DefaultGames() []GameView {
	return []GameView{
		{ID: 1, Name: "Memoria de Dinosaurios", Description: "Encuentra las parejas de dinosaurios", Available: true},
		{ID: 2, Name: "Trivia Jurásica", Description: "Pon a prueba tus conocimientos", Available: false},
		{ID: 3, Name: "Rompecabezas Dino", Description: "Arma el dinosaurio pieza por pieza", Available: false},
	}
}

// NewGame creates a game row for an id that is not in the catalog yet
func NewGame(id int) *Game {
	return &Game{
		ID:          id,
		Name:        "Memoria de Dinosaurios",
		Description: "Encuentra las parejas de dinosaurios",
		CreatedAt:   time.Now().UTC(),
	}
}
