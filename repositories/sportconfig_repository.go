package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/opencourt/tournament-backend/models"
)

var (
	ErrSportConfigNotFound = errors.New("sport config not found")
	ErrSportConfigConflict = errors.New("sport config already exists for this sport")
)

type SportConfigRepository interface {
	Upsert(ctx context.Context, cfg *models.SportConfig) error
	GetBySport(ctx context.Context, sport models.Sport) (*models.SportConfig, error)
	List(ctx context.Context) ([]models.SportConfig, error)
}

type postgresSportConfigRepository struct {
	db *sql.DB
}

func NewPostgresSportConfigRepository(db *sql.DB) SportConfigRepository {
	return &postgresSportConfigRepository{db: db}
}

func (r *postgresSportConfigRepository) Upsert(ctx context.Context, cfg *models.SportConfig) error {
	scoring, err := json.Marshal(cfg.Scoring)
	if err != nil {
		return fmt.Errorf("failed to encode scoring rules: %w", err)
	}
	teamCfg, err := json.Marshal(cfg.TeamConfig)
	if err != nil {
		return fmt.Errorf("failed to encode team config: %w", err)
	}
	labels, err := json.Marshal(cfg.ScoreLabels)
	if err != nil {
		return fmt.Errorf("failed to encode score labels: %w", err)
	}

	query := `
		INSERT INTO sport_configs (sport, display_name, match_duration_type, scoring, team_config, best_of_options, score_labels)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sport) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			match_duration_type = EXCLUDED.match_duration_type,
			scoring = EXCLUDED.scoring,
			team_config = EXCLUDED.team_config,
			best_of_options = EXCLUDED.best_of_options,
			score_labels = EXCLUDED.score_labels
		RETURNING id, created_at`

	bestOf := make(pq.Int64Array, 0, len(cfg.BestOfOptions))
	for _, n := range cfg.BestOfOptions {
		bestOf = append(bestOf, int64(n))
	}

	return r.db.QueryRowContext(ctx, query,
		cfg.Sport, cfg.DisplayName, cfg.DurationType, scoring, teamCfg, bestOf, labels,
	).Scan(&cfg.ID, &cfg.CreatedAt)
}

func (r *postgresSportConfigRepository) GetBySport(ctx context.Context, sport models.Sport) (*models.SportConfig, error) {
	query := `
		SELECT id, sport, display_name, match_duration_type, scoring, team_config, best_of_options, score_labels, created_at
		FROM sport_configs WHERE sport = $1`

	cfg, err := r.scanConfig(r.db.QueryRowContext(ctx, query, sport))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSportConfigNotFound
		}
		return nil, err
	}
	return cfg, nil
}

func (r *postgresSportConfigRepository) List(ctx context.Context) ([]models.SportConfig, error) {
	query := `
		SELECT id, sport, display_name, match_duration_type, scoring, team_config, best_of_options, score_labels, created_at
		FROM sport_configs ORDER BY sport`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make([]models.SportConfig, 0)
	for rows.Next() {
		cfg, scanErr := r.scanConfig(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}

func (r *postgresSportConfigRepository) scanConfig(row interface{ Scan(...interface{}) error }) (*models.SportConfig, error) {
	cfg := &models.SportConfig{}
	var scoring, teamCfg, labels []byte
	var bestOf pq.Int64Array

	err := row.Scan(
		&cfg.ID, &cfg.Sport, &cfg.DisplayName, &cfg.DurationType,
		&scoring, &teamCfg, &bestOf, &labels, &cfg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := cfg.ScanScoring(scoring); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(teamCfg, &cfg.TeamConfig); err != nil {
		return nil, fmt.Errorf("failed to decode team config: %w", err)
	}
	if err := json.Unmarshal(labels, &cfg.ScoreLabels); err != nil {
		return nil, fmt.Errorf("failed to decode score labels: %w", err)
	}
	for _, n := range bestOf {
		cfg.BestOfOptions = append(cfg.BestOfOptions, int(n))
	}
	return cfg, nil
}
