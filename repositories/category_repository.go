package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/opencourt/tournament-backend/models"
)

var (
	ErrCategoryNotFound          = errors.New("category not found")
	ErrCategoryNameConflict      = errors.New("category name conflict in this tournament")
	ErrCategoryInvalidTournament = errors.New("invalid tournament reference")
	ErrCategoryInvalidTransition = errors.New("category status transition not allowed")
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id int) (*models.Category, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Category, error)
	ExistsByName(ctx context.Context, tournamentID int, name string) (bool, error)
	Update(ctx context.Context, category *models.Category) error
	// UpdateStatusFrom advances the category chain with a conditional update
	// keyed on the single legal predecessor state.
	UpdateStatusFrom(ctx context.Context, exec SQLExecutor, id int, next models.CategoryStatus, requiredFrom models.CategoryStatus) error
	Delete(ctx context.Context, id int) error
}

type postgresCategoryRepository struct {
	db *sql.DB
}

func NewPostgresCategoryRepository(db *sql.DB) CategoryRepository {
	return &postgresCategoryRepository{db: db}
}

func (r *postgresCategoryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const categoryColumns = `
	id, tournament_id, name, gender, age_min, age_max, age_label,
	match_type, best_of, points_per_game, tie_break_points,
	bracket_type, league_size, top_n, status, created_at`

func (r *postgresCategoryRepository) scanCategory(row interface{ Scan(...interface{}) error }) (*models.Category, error) {
	c := &models.Category{}
	var leagueSize, topN sql.NullInt64
	err := row.Scan(
		&c.ID, &c.TournamentID, &c.Name, &c.Gender, &c.AgeGroup.Min, &c.AgeGroup.Max, &c.AgeGroup.Label,
		&c.MatchType, &c.MatchFormat.BestOf, &c.MatchFormat.PointsPerGame, &c.MatchFormat.TieBreakPoints,
		&c.BracketType, &leagueSize, &topN, &c.Status, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if leagueSize.Valid && topN.Valid {
		c.HybridConfig = &models.HybridConfig{
			LeagueSize: int(leagueSize.Int64),
			TopN:       int(topN.Int64),
		}
	}
	return c, nil
}

func (r *postgresCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO categories (
			tournament_id, name, gender, age_min, age_max, age_label,
			match_type, best_of, points_per_game, tie_break_points,
			bracket_type, league_size, top_n, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`

	var leagueSize, topN *int
	if c.HybridConfig != nil {
		leagueSize = &c.HybridConfig.LeagueSize
		topN = &c.HybridConfig.TopN
	}

	err := executor.QueryRowContext(ctx, query,
		c.TournamentID, c.Name, c.Gender, c.AgeGroup.Min, c.AgeGroup.Max, c.AgeGroup.Label,
		c.MatchType, c.MatchFormat.BestOf, c.MatchFormat.PointsPerGame, c.MatchFormat.TieBreakPoints,
		c.BracketType, leagueSize, topN, c.Status,
	).Scan(&c.ID, &c.CreatedAt)

	return r.handleCategoryError(err)
}

func (r *postgresCategoryRepository) GetByID(ctx context.Context, id int) (*models.Category, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + categoryColumns + ` FROM categories WHERE id = $1`

	c, err := r.scanCategory(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *postgresCategoryRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Category, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + categoryColumns + ` FROM categories WHERE tournament_id = $1 ORDER BY name`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		var leagueSize, topN sql.NullInt64
		if scanErr := rows.Scan(
			&c.ID, &c.TournamentID, &c.Name, &c.Gender, &c.AgeGroup.Min, &c.AgeGroup.Max, &c.AgeGroup.Label,
			&c.MatchType, &c.MatchFormat.BestOf, &c.MatchFormat.PointsPerGame, &c.MatchFormat.TieBreakPoints,
			&c.BracketType, &leagueSize, &topN, &c.Status, &c.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		if leagueSize.Valid && topN.Valid {
			c.HybridConfig = &models.HybridConfig{LeagueSize: int(leagueSize.Int64), TopN: int(topN.Int64)}
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *postgresCategoryRepository) ExistsByName(ctx context.Context, tournamentID int, name string) (bool, error) {
	executor := r.getExecutor(nil)
	query := `SELECT EXISTS(SELECT 1 FROM categories WHERE tournament_id = $1 AND lower(name) = lower($2))`
	var exists bool
	if err := executor.QueryRowContext(ctx, query, tournamentID, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *postgresCategoryRepository) Update(ctx context.Context, c *models.Category) error {
	executor := r.getExecutor(nil)
	query := `
		UPDATE categories SET
			name = $1,
			gender = $2,
			age_min = $3,
			age_max = $4,
			age_label = $5,
			match_type = $6,
			best_of = $7,
			points_per_game = $8,
			tie_break_points = $9,
			bracket_type = $10,
			league_size = $11,
			top_n = $12
		WHERE id = $13`

	var leagueSize, topN *int
	if c.HybridConfig != nil {
		leagueSize = &c.HybridConfig.LeagueSize
		topN = &c.HybridConfig.TopN
	}

	result, err := executor.ExecContext(ctx, query,
		c.Name, c.Gender, c.AgeGroup.Min, c.AgeGroup.Max, c.AgeGroup.Label,
		c.MatchType, c.MatchFormat.BestOf, c.MatchFormat.PointsPerGame, c.MatchFormat.TieBreakPoints,
		c.BracketType, leagueSize, topN,
		c.ID,
	)
	if err != nil {
		return r.handleCategoryError(err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

func (r *postgresCategoryRepository) UpdateStatusFrom(ctx context.Context, exec SQLExecutor, id int, next models.CategoryStatus, requiredFrom models.CategoryStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE categories SET status = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query, next, id, requiredFrom)
	if err != nil {
		return err
	}

	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := executor.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrCategoryNotFound
		}
		return ErrCategoryInvalidTransition
	}
	return nil
}

func (r *postgresCategoryRepository) Delete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return r.handleCategoryError(err)
	}
	return checkAffectedRows(result, ErrCategoryNotFound)
}

func (r *postgresCategoryRepository) handleCategoryError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "categories_tournament_id_name_key" {
				return ErrCategoryNameConflict
			}
		case "23503":
			if pqErr.Constraint == "categories_tournament_id_fkey" {
				return ErrCategoryInvalidTournament
			}
		}
	}
	return err
}
