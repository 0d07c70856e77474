package models

import "time"

// CategoryStatus — статусы категории. Цепочка строго линейная,
// пропуск шагов и отмена не предусмотрены.
type CategoryStatus string

const (
	CategoryStatusSetup             CategoryStatus = "setup"
	CategoryStatusRegistration      CategoryStatus = "registration"
	CategoryStatusAuction           CategoryStatus = "auction"
	CategoryStatusBracketConfigured CategoryStatus = "bracket_configured"
	CategoryStatusOngoing           CategoryStatus = "ongoing"
	CategoryStatusCompleted         CategoryStatus = "completed"
)

type CategoryGender string

const (
	CategoryGenderMale   CategoryGender = "male"
	CategoryGenderFemale CategoryGender = "female"
	CategoryGenderMixed  CategoryGender = "mixed"
)

type MatchType string

const (
	MatchTypeSingles MatchType = "singles"
	MatchTypeDoubles MatchType = "doubles"
)

type BracketType string

const (
	BracketTypeLeague   BracketType = "league"
	BracketTypeKnockout BracketType = "knockout"
	BracketTypeHybrid   BracketType = "hybrid"
)

type AgeGroup struct {
	Min   *int   `json:"min,omitempty" db:"age_min"`
	Max   *int   `json:"max,omitempty" db:"age_max"`
	Label string `json:"label" db:"age_label"`
}

type MatchFormat struct {
	BestOf         int  `json:"best_of" db:"best_of"`
	PointsPerGame  int  `json:"points_per_game" db:"points_per_game"`
	TieBreakPoints *int `json:"tie_break_points,omitempty" db:"tie_break_points"`
}

// HybridConfig обязателен только для bracket_type = hybrid,
// при этом TopN < LeagueSize.
type HybridConfig struct {
	LeagueSize int `json:"league_size" db:"league_size"`
	TopN       int `json:"top_n" db:"top_n"`
}

// Category — подразделение турнира со своим форматом и сеткой.
// Имя уникально в пределах турнира.
type Category struct {
	ID           int            `json:"id" db:"id"`
	TournamentID int            `json:"tournament_id" db:"tournament_id"`
	Name         string         `json:"name" db:"name"`
	Gender       CategoryGender `json:"gender" db:"gender"`
	AgeGroup     AgeGroup       `json:"age_group"`
	MatchType    MatchType      `json:"match_type" db:"match_type"`
	MatchFormat  MatchFormat    `json:"match_format"`
	BracketType  BracketType    `json:"bracket_type" db:"bracket_type"`
	HybridConfig *HybridConfig  `json:"hybrid_config,omitempty"`
	Status       CategoryStatus `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}
