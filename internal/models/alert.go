package models

import "time"

// ReserveAlert is raised when the house balance crosses below the configured
// reserve target. Alerts are advisory only; the engine never blocks play.
type ReserveAlert struct {
	ID        int       `json:"id"`
	GameType  string    `json:"gameType"`
	Balance   float64   `json:"balance"`
	Target    float64   `json:"target"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
