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
	ErrRegistrationNotFound          = errors.New("registration not found")
	ErrRegistrationConflict          = errors.New("player is already registered for this category")
	ErrRegistrationInvalidReference  = errors.New("invalid tournament, category or team reference")
	ErrRegistrationInvalidTransition = errors.New("registration status transition not allowed")
)

type ListRegistrationsFilter struct {
	CategoryID *int
	Status     *models.RegistrationStatus
	TeamID     *int
}

type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id int) (*models.Registration, error)
	ListByPlayer(ctx context.Context, playerID int) ([]models.Registration, error)
	ListByTournament(ctx context.Context, tournamentID int, filter ListRegistrationsFilter) ([]models.Registration, error)
	ListByCategory(ctx context.Context, categoryID int) ([]models.Registration, error)
	ListByTeam(ctx context.Context, teamID int) ([]models.Registration, error)
	ListApprovedUnassigned(ctx context.Context, categoryID int) ([]models.Registration, error)
	UpdatePhotoKey(ctx context.Context, id int, photoKey *string) error

	// Every transition below is a single conditional UPDATE keyed on the
	// expected prior state, so concurrent attempts on the same registration
	// leave exactly one winner.
	UpdateStatusFrom(ctx context.Context, id int, next models.RegistrationStatus, allowedFrom []models.RegistrationStatus) error
	// MarkAuctioned moves approved -> auctioned, pointing the registration at
	// the team with the price it was sold for.
	MarkAuctioned(ctx context.Context, exec SQLExecutor, id int, teamID int, soldPrice int) error
	// MarkAssigned performs a manual placement. The prior team pointer and
	// sold price must match the snapshot the caller refunded against,
	// otherwise the write is rejected.
	MarkAssigned(ctx context.Context, exec SQLExecutor, id int, teamID int, prevTeamID *int, prevSoldPrice *int) error
	// ClearAssignment moves the registration back to approved, dropping the
	// team pointer and auction data; guarded by the same snapshot match.
	ClearAssignment(ctx context.Context, exec SQLExecutor, id int, prevTeamID int, prevSoldPrice *int) error
}

type postgresRegistrationRepository struct {
	db *sql.DB
}

func NewPostgresRegistrationRepository(db *sql.DB) RegistrationRepository {
	return &postgresRegistrationRepository{db: db}
}

func (r *postgresRegistrationRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const registrationColumns = `
	id, player_id, tournament_id, category_id,
	player_name, player_age, player_gender, player_phone, photo_key, skill_level,
	status, team_id, base_price, sold_price, auctioned_at, created_at`

func (r *postgresRegistrationRepository) scanRegistration(row interface{ Scan(...interface{}) error }) (*models.Registration, error) {
	reg := &models.Registration{}
	err := row.Scan(
		&reg.ID, &reg.PlayerID, &reg.TournamentID, &reg.CategoryID,
		&reg.Profile.Name, &reg.Profile.Age, &reg.Profile.Gender, &reg.Profile.Phone,
		&reg.Profile.PhotoKey, &reg.Profile.SkillLevel,
		&reg.Status, &reg.TeamID, &reg.AuctionData.BasePrice, &reg.AuctionData.SoldPrice,
		&reg.AuctionData.AuctionedAt, &reg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) Create(ctx context.Context, reg *models.Registration) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO registrations (
			player_id, tournament_id, category_id,
			player_name, player_age, player_gender, player_phone, photo_key, skill_level,
			status, base_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		reg.PlayerID, reg.TournamentID, reg.CategoryID,
		reg.Profile.Name, reg.Profile.Age, reg.Profile.Gender, reg.Profile.Phone,
		reg.Profile.PhotoKey, reg.Profile.SkillLevel,
		reg.Status, reg.AuctionData.BasePrice,
	).Scan(&reg.ID, &reg.CreatedAt)

	return r.handleRegistrationError(err)
}

func (r *postgresRegistrationRepository) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + registrationColumns + ` FROM registrations WHERE id = $1`

	reg, err := r.scanRegistration(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *postgresRegistrationRepository) queryRegistrations(ctx context.Context, query string, args ...interface{}) ([]models.Registration, error) {
	executor := r.getExecutor(nil)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]models.Registration, 0)
	for rows.Next() {
		var reg models.Registration
		if scanErr := rows.Scan(
			&reg.ID, &reg.PlayerID, &reg.TournamentID, &reg.CategoryID,
			&reg.Profile.Name, &reg.Profile.Age, &reg.Profile.Gender, &reg.Profile.Phone,
			&reg.Profile.PhotoKey, &reg.Profile.SkillLevel,
			&reg.Status, &reg.TeamID, &reg.AuctionData.BasePrice, &reg.AuctionData.SoldPrice,
			&reg.AuctionData.AuctionedAt, &reg.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *postgresRegistrationRepository) ListByPlayer(ctx context.Context, playerID int) ([]models.Registration, error) {
	query := `SELECT` + registrationColumns + ` FROM registrations WHERE player_id = $1 ORDER BY created_at DESC`
	return r.queryRegistrations(ctx, query, playerID)
}

func (r *postgresRegistrationRepository) ListByTournament(ctx context.Context, tournamentID int, filter ListRegistrationsFilter) ([]models.Registration, error) {
	query := `SELECT` + registrationColumns + ` FROM registrations WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	argID := 2

	if filter.CategoryID != nil {
		query += ` AND category_id = $2`
		args = append(args, *filter.CategoryID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.TeamID != nil {
		query += fmt.Sprintf(" AND team_id = $%d", argID)
		args = append(args, *filter.TeamID)
	}
	query += ` ORDER BY created_at DESC`

	return r.queryRegistrations(ctx, query, args...)
}

func (r *postgresRegistrationRepository) ListByCategory(ctx context.Context, categoryID int) ([]models.Registration, error) {
	query := `SELECT` + registrationColumns + ` FROM registrations WHERE category_id = $1 ORDER BY player_name`
	return r.queryRegistrations(ctx, query, categoryID)
}

func (r *postgresRegistrationRepository) ListByTeam(ctx context.Context, teamID int) ([]models.Registration, error) {
	query := `SELECT` + registrationColumns + ` FROM registrations WHERE team_id = $1 ORDER BY player_name`
	return r.queryRegistrations(ctx, query, teamID)
}

func (r *postgresRegistrationRepository) ListApprovedUnassigned(ctx context.Context, categoryID int) ([]models.Registration, error) {
	query := `SELECT` + registrationColumns + `
		FROM registrations
		WHERE category_id = $1 AND status = $2 AND team_id IS NULL
		ORDER BY base_price DESC, player_name`
	return r.queryRegistrations(ctx, query, categoryID, models.RegistrationStatusApproved)
}

func (r *postgresRegistrationRepository) UpdatePhotoKey(ctx context.Context, id int, photoKey *string) error {
	executor := r.getExecutor(nil)
	result, err := executor.ExecContext(ctx, `UPDATE registrations SET photo_key = $1 WHERE id = $2`, photoKey, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRegistrationNotFound)
}

func (r *postgresRegistrationRepository) UpdateStatusFrom(ctx context.Context, id int, next models.RegistrationStatus, allowedFrom []models.RegistrationStatus) error {
	executor := r.getExecutor(nil)
	query := `UPDATE registrations SET status = $1 WHERE id = $2 AND status = ANY($3)`
	result, err := executor.ExecContext(ctx, query, next, id, statusStrings(allowedFrom))
	if err != nil {
		return err
	}
	return r.resolveConditionalResult(ctx, executor, result, id)
}

func (r *postgresRegistrationRepository) MarkAuctioned(ctx context.Context, exec SQLExecutor, id int, teamID int, soldPrice int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE registrations
		SET status = $1, team_id = $2, sold_price = $3, auctioned_at = now()
		WHERE id = $4 AND status = $5`
	result, err := executor.ExecContext(ctx, query,
		models.RegistrationStatusAuctioned, teamID, soldPrice,
		id, models.RegistrationStatusApproved,
	)
	if err != nil {
		return r.handleRegistrationError(err)
	}
	return r.resolveConditionalResult(ctx, executor, result, id)
}

func (r *postgresRegistrationRepository) MarkAssigned(ctx context.Context, exec SQLExecutor, id int, teamID int, prevTeamID *int, prevSoldPrice *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE registrations
		SET status = $1, team_id = $2, sold_price = NULL, auctioned_at = NULL
		WHERE id = $3 AND status = ANY($4)
		  AND team_id IS NOT DISTINCT FROM $5
		  AND sold_price IS NOT DISTINCT FROM $6`
	allowed := statusStrings([]models.RegistrationStatus{
		models.RegistrationStatusApproved,
		models.RegistrationStatusAuctioned,
		models.RegistrationStatusAssigned,
	})
	result, err := executor.ExecContext(ctx, query,
		models.RegistrationStatusAssigned, teamID,
		id, allowed, prevTeamID, prevSoldPrice,
	)
	if err != nil {
		return r.handleRegistrationError(err)
	}
	return r.resolveConditionalResult(ctx, executor, result, id)
}

func (r *postgresRegistrationRepository) ClearAssignment(ctx context.Context, exec SQLExecutor, id int, prevTeamID int, prevSoldPrice *int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE registrations
		SET status = $1, team_id = NULL, sold_price = NULL, auctioned_at = NULL
		WHERE id = $2 AND team_id = $3 AND sold_price IS NOT DISTINCT FROM $4`
	result, err := executor.ExecContext(ctx, query,
		models.RegistrationStatusApproved, id, prevTeamID, prevSoldPrice,
	)
	if err != nil {
		return err
	}
	return r.resolveConditionalResult(ctx, executor, result, id)
}

func (r *postgresRegistrationRepository) resolveConditionalResult(ctx context.Context, executor SQLExecutor, result sql.Result, id int) error {
	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := executor.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM registrations WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRegistrationNotFound
		}
		return ErrRegistrationInvalidTransition
	}
	return nil
}

func (r *postgresRegistrationRepository) handleRegistrationError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "registrations_player_id_tournament_id_category_id_key" {
				return ErrRegistrationConflict
			}
		case "23503":
			return ErrRegistrationInvalidReference
		}
	}
	return err
}
