package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/opencourt/tournament-backend/models"
)

var (
	ErrTeamNotFound           = errors.New("team not found")
	ErrTeamNameConflict       = errors.New("team name conflict in this tournament")
	ErrTeamInvalidTournament  = errors.New("invalid tournament reference")
	ErrTeamInsufficientBudget = errors.New("team budget is insufficient")
	ErrTeamNegativeAmount     = errors.New("budget amount must be non-negative")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Team, error)
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
	Update(ctx context.Context, team *models.Team) error
	Delete(ctx context.Context, id int) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error

	// DebitBudget is the ledger's conditional decrement: the precondition
	// budget >= amount and the write are one UPDATE statement, so two
	// concurrent debits can never both pass the check and overdraw.
	// A negative amount is ErrTeamNegativeAmount: budget >= $1 would pass
	// trivially and the debit would turn into a credit.
	DebitBudget(ctx context.Context, exec SQLExecutor, id int, amount int) error
	// CreditBudget increases the budget unconditionally. Callers only ever
	// credit back an amount previously debited for the same registration.
	// A negative amount is ErrTeamNegativeAmount.
	CreditBudget(ctx context.Context, exec SQLExecutor, id int, amount int) error
	SetBudget(ctx context.Context, id int, budget int) error
	ResetBudget(ctx context.Context, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const teamColumns = `
	id, tournament_id, name, primary_color, secondary_color,
	owner_name, owner_phone, owner_email, budget, initial_budget, logo_key, created_at`

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO teams (
			tournament_id, name, primary_color, secondary_color,
			owner_name, owner_phone, owner_email, budget, initial_budget, logo_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		t.TournamentID, t.Name, t.PrimaryColor, t.SecondaryColor,
		t.Owner.Name, t.Owner.Phone, t.Owner.Email, t.Budget, t.InitialBudget, t.LogoKey,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + teamColumns + ` FROM teams WHERE id = $1`

	t := &models.Team{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.TournamentID, &t.Name, &t.PrimaryColor, &t.SecondaryColor,
		&t.Owner.Name, &t.Owner.Phone, &t.Owner.Email, &t.Budget, &t.InitialBudget, &t.LogoKey, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Team, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + teamColumns + ` FROM teams WHERE tournament_id = $1 ORDER BY name`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		var t models.Team
		if scanErr := rows.Scan(
			&t.ID, &t.TournamentID, &t.Name, &t.PrimaryColor, &t.SecondaryColor,
			&t.Owner.Name, &t.Owner.Phone, &t.Owner.Email, &t.Budget, &t.InitialBudget, &t.LogoKey, &t.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	executor := r.getExecutor(nil)
	var count int
	err := executor.QueryRowContext(ctx, `SELECT count(*) FROM teams WHERE tournament_id = $1`, tournamentID).Scan(&count)
	return count, err
}

func (r *postgresTeamRepository) Update(ctx context.Context, t *models.Team) error {
	executor := r.getExecutor(nil)
	// budget and logo_key are written only through their dedicated methods
	query := `
		UPDATE teams SET
			name = $1,
			primary_color = $2,
			secondary_color = $3,
			owner_name = $4,
			owner_phone = $5,
			owner_email = $6
		WHERE id = $7`

	result, err := executor.ExecContext(ctx, query,
		t.Name, t.PrimaryColor, t.SecondaryColor,
		t.Owner.Name, t.Owner.Phone, t.Owner.Email,
		t.ID,
	)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `UPDATE teams SET logo_key = $1 WHERE id = $2`, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update team logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) DebitBudget(ctx context.Context, exec SQLExecutor, id int, amount int) error {
	if amount < 0 {
		return ErrTeamNegativeAmount
	}
	executor := r.getExecutor(exec)
	query := `UPDATE teams SET budget = budget - $1 WHERE id = $2 AND budget >= $1`
	result, err := executor.ExecContext(ctx, query, amount, id)
	if err != nil {
		return err
	}

	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := executor.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM teams WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrTeamNotFound
		}
		return ErrTeamInsufficientBudget
	}
	return nil
}

func (r *postgresTeamRepository) CreditBudget(ctx context.Context, exec SQLExecutor, id int, amount int) error {
	if amount < 0 {
		return ErrTeamNegativeAmount
	}
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE teams SET budget = budget + $1 WHERE id = $2`, amount, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) SetBudget(ctx context.Context, id int, budget int) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `UPDATE teams SET budget = $1 WHERE id = $2`, budget, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) ResetBudget(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `UPDATE teams SET budget = initial_budget WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "teams_tournament_id_name_key" {
				return ErrTeamNameConflict
			}
		case "23503":
			if pqErr.Constraint == "teams_tournament_id_fkey" {
				return ErrTeamInvalidTournament
			}
		}
	}
	return err
}
