package models

import (
	"strings"
	"testing"
)

func TestScoringRulesValidate(t *testing.T) {
	points := &PointsRules{PointsToWin: 21, MinPointsDifference: 2, MaxPoints: 30}
	goals := &GoalsRules{PeriodDurationMinutes: 45, NumberOfPeriods: 2}

	tests := []struct {
		name    string
		rules   ScoringRules
		wantErr string
	}{
		{
			name:  "declared variant filled",
			rules: ScoringRules{Type: ScoringTypePoints, Points: points},
		},
		{
			name:    "declared variant missing",
			rules:   ScoringRules{Type: ScoringTypePoints},
			wantErr: "missing",
		},
		{
			name:    "extra variant alongside declared",
			rules:   ScoringRules{Type: ScoringTypePoints, Points: points, Goals: goals},
			wantErr: "extra variant",
		},
		{
			name:    "unknown type",
			rules:   ScoringRules{Type: "laps"},
			wantErr: "unknown scoring type",
		},
		{
			name:  "sets and games",
			rules: ScoringRules{Type: ScoringTypeSetsGames, SetsGames: &SetsGamesRules{SetsToWin: 2, GamesPerSet: 6, PointsPerGame: 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
