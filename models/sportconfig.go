package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScoringType различает формы счёта по видам спорта.
type ScoringType string

const (
	ScoringTypePoints      ScoringType = "points"       // бадминтон, настольный теннис
	ScoringTypeSetsGames   ScoringType = "sets_games"   // теннис
	ScoringTypeGoals       ScoringType = "goals"        // футбол
	ScoringTypeRunsWickets ScoringType = "runs_wickets" // крикет
	ScoringTypeRaidPoints  ScoringType = "raid_points"  // кабадди
)

type MatchDurationType string

const (
	DurationPointsBased MatchDurationType = "points_based"
	DurationTimeBased   MatchDurationType = "time_based"
	DurationOversBased  MatchDurationType = "overs_based"
	DurationSetsBased   MatchDurationType = "sets_based"
)

// ScoringRules — размеченное объединение правил счёта: ровно один вариант
// заполнен, и он определяется полем Type. Вариант на каждый ScoringType
// вместо одной записи со сплошь опциональными полями.
type ScoringRules struct {
	Type        ScoringType         `json:"type"`
	Points      *PointsRules        `json:"points,omitempty"`
	SetsGames   *SetsGamesRules     `json:"sets_games,omitempty"`
	Goals       *GoalsRules         `json:"goals,omitempty"`
	RunsWickets *RunsWicketsRules   `json:"runs_wickets,omitempty"`
	RaidPoints  *RaidPointsRules    `json:"raid_points,omitempty"`
}

type PointsRules struct {
	PointsToWin         int  `json:"points_to_win"`
	MinPointsDifference int  `json:"min_points_difference"`
	MaxPoints           int  `json:"max_points"`
	AllowTieBreaker     bool `json:"allow_tie_breaker"`
}

type SetsGamesRules struct {
	SetsToWin     int `json:"sets_to_win"`
	GamesPerSet   int `json:"games_per_set"`
	PointsPerGame int `json:"points_per_game"`
}

type GoalsRules struct {
	PeriodDurationMinutes int    `json:"period_duration_minutes"`
	NumberOfPeriods       int    `json:"number_of_periods"`
	OvertimeRules         string `json:"overtime_rules,omitempty"`
}

type RunsWicketsRules struct {
	DefaultOvers    int    `json:"default_overs"`
	AllowTieBreaker bool   `json:"allow_tie_breaker"`
	TieBreakerRules string `json:"tie_breaker_rules,omitempty"`
}

type RaidPointsRules struct {
	PeriodDurationMinutes int `json:"period_duration_minutes"`
	NumberOfPeriods       int `json:"number_of_periods"`
}

// Validate проверяет, что заполнен ровно тот вариант, который объявлен в Type.
func (r ScoringRules) Validate() error {
	variants := map[ScoringType]bool{
		ScoringTypePoints:      r.Points != nil,
		ScoringTypeSetsGames:   r.SetsGames != nil,
		ScoringTypeGoals:       r.Goals != nil,
		ScoringTypeRunsWickets: r.RunsWickets != nil,
		ScoringTypeRaidPoints:  r.RaidPoints != nil,
	}
	declared, known := variants[r.Type]
	if !known {
		return fmt.Errorf("unknown scoring type %q", r.Type)
	}
	if !declared {
		return fmt.Errorf("scoring rules for type %q are missing", r.Type)
	}
	for typ, set := range variants {
		if typ != r.Type && set {
			return fmt.Errorf("scoring rules contain extra variant %q for type %q", typ, r.Type)
		}
	}
	return nil
}

type TeamComposition struct {
	MinPlayersPerTeam int  `json:"min_players_per_team"`
	MaxPlayersPerTeam int  `json:"max_players_per_team"`
	PlayersOnField    int  `json:"players_on_field"`
	AllowSubstitutes  bool `json:"allow_substitutes"`
}

type ScoreLabels struct {
	Primary   string `json:"primary"`             // "Points", "Goals", "Runs"
	Secondary string `json:"secondary,omitempty"` // "Games", "Wickets", "Sets"
	Tertiary  string `json:"tertiary,omitempty"`
}

// SportConfig — справочная конфигурация одного вида спорта.
type SportConfig struct {
	ID           int               `json:"id" db:"id"`
	Sport        Sport             `json:"sport" db:"sport"`
	DisplayName  string            `json:"display_name" db:"display_name"`
	DurationType MatchDurationType `json:"match_duration_type" db:"match_duration_type"`
	Scoring      ScoringRules      `json:"scoring"`
	TeamConfig   TeamComposition   `json:"team_config"`
	BestOfOptions []int            `json:"best_of_options"`
	ScoreLabels  ScoreLabels       `json:"score_labels"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}

// ScanScoring десериализует jsonb-колонку scoring.
func (c *SportConfig) ScanScoring(raw []byte) error {
	if err := json.Unmarshal(raw, &c.Scoring); err != nil {
		return fmt.Errorf("failed to decode scoring rules: %w", err)
	}
	return c.Scoring.Validate()
}
