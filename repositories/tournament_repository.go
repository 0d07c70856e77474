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
	ErrTournamentNotFound          = errors.New("tournament not found")
	ErrTournamentNameConflict      = errors.New("tournament name conflict for this organizer")
	ErrTournamentInvalidOrganizer  = errors.New("invalid organizer reference")
	ErrTournamentInvalidTransition = errors.New("tournament status transition not allowed")
	ErrStaffAlreadyAdded           = errors.New("user is already staff for this tournament")
	ErrStaffNotMember              = errors.New("user is not staff for this tournament")
	ErrStaffIsOrganizer            = errors.New("tournament organizer cannot be added as staff")
)

type ListTournamentsFilter struct {
	Status    *models.TournamentStatus
	Sport     *models.Sport
	City      *string
	CreatedBy *int
	Limit     int
	Offset    int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, int, error)
	ListByOrganizerOrStaff(ctx context.Context, userID int) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	// UpdateStatusFrom performs a single conditional update: the new status is
	// written only if the current status is in allowedFrom. A concurrent
	// transition makes the losing call fail with ErrTournamentInvalidTransition.
	UpdateStatusFrom(ctx context.Context, exec SQLExecutor, id int, next models.TournamentStatus, allowedFrom []models.TournamentStatus) error
	Delete(ctx context.Context, id int) error
	UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error

	AddStaff(ctx context.Context, tournamentID, staffID int) error
	RemoveStaff(ctx context.Context, tournamentID, staffID int) error
	IsOrganizer(ctx context.Context, tournamentID, userID int) (bool, error)
	IsOrganizerOrStaff(ctx context.Context, tournamentID, userID int) (bool, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, description, sport, banner_key, start_date, end_date,
	venue_name, venue_address, venue_city, registration_deadline,
	status, created_by, staff_ids,
	max_teams, default_budget, auction_type, allow_late_registration, created_at`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	var staffIDs pq.Int64Array
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Sport, &t.BannerKey, &t.StartDate, &t.EndDate,
		&t.Venue.Name, &t.Venue.Address, &t.Venue.City, &t.RegistrationDeadline,
		&t.Status, &t.CreatedBy, &staffIDs,
		&t.Settings.MaxTeams, &t.Settings.DefaultBudget, &t.Settings.AuctionType,
		&t.Settings.AllowLateRegistration, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.StaffIDs = make([]int, 0, len(staffIDs))
	for _, id := range staffIDs {
		t.StaffIDs = append(t.StaffIDs, int(id))
	}
	return t, nil
}

func staffArray(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}

func statusStrings[S ~string](statuses []S) pq.StringArray {
	arr := make(pq.StringArray, 0, len(statuses))
	for _, s := range statuses {
		arr = append(arr, string(s))
	}
	return arr
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	query := `
		INSERT INTO tournaments (
			name, description, sport, banner_key, start_date, end_date,
			venue_name, venue_address, venue_city, registration_deadline,
			status, created_by, staff_ids,
			max_teams, default_budget, auction_type, allow_late_registration
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		t.Name, t.Description, t.Sport, t.BannerKey, t.StartDate, t.EndDate,
		t.Venue.Name, t.Venue.Address, t.Venue.City, t.RegistrationDeadline,
		t.Status, t.CreatedBy, staffArray(t.StaffIDs),
		t.Settings.MaxTeams, t.Settings.DefaultBudget, t.Settings.AuctionType, t.Settings.AllowLateRegistration,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, int, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + `, count(*) OVER() FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Sport != nil {
		query += fmt.Sprintf(" AND sport = $%d", argID)
		args = append(args, *filter.Sport)
		argID++
	}
	if filter.City != nil {
		query += fmt.Sprintf(" AND venue_city = $%d", argID)
		args = append(args, *filter.City)
		argID++
	}
	if filter.CreatedBy != nil {
		query += fmt.Sprintf(" AND created_by = $%d", argID)
		args = append(args, *filter.CreatedBy)
		argID++
	}

	query += " ORDER BY start_date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	total := 0
	for rows.Next() {
		var t models.Tournament
		var staffIDs pq.Int64Array
		if scanErr := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.Sport, &t.BannerKey, &t.StartDate, &t.EndDate,
			&t.Venue.Name, &t.Venue.Address, &t.Venue.City, &t.RegistrationDeadline,
			&t.Status, &t.CreatedBy, &staffIDs,
			&t.Settings.MaxTeams, &t.Settings.DefaultBudget, &t.Settings.AuctionType,
			&t.Settings.AllowLateRegistration, &t.CreatedAt, &total,
		); scanErr != nil {
			return nil, 0, scanErr
		}
		for _, id := range staffIDs {
			t.StaffIDs = append(t.StaffIDs, int(id))
		}
		tournaments = append(tournaments, t)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return tournaments, total, nil
}

func (r *postgresTournamentRepository) ListByOrganizerOrStaff(ctx context.Context, userID int) ([]models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE created_by = $1 OR $1 = ANY(staff_ids)
		ORDER BY created_at DESC`

	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		var staffIDs pq.Int64Array
		if scanErr := rows.Scan(
			&t.ID, &t.Name, &t.Description, &t.Sport, &t.BannerKey, &t.StartDate, &t.EndDate,
			&t.Venue.Name, &t.Venue.Address, &t.Venue.City, &t.RegistrationDeadline,
			&t.Status, &t.CreatedBy, &staffIDs,
			&t.Settings.MaxTeams, &t.Settings.DefaultBudget, &t.Settings.AuctionType,
			&t.Settings.AllowLateRegistration, &t.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		for _, id := range staffIDs {
			t.StaffIDs = append(t.StaffIDs, int(id))
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	executor := r.getExecutor(nil)
	// status, created_by, staff_ids and banner_key have dedicated methods
	query := `
		UPDATE tournaments SET
			name = $1,
			description = $2,
			sport = $3,
			start_date = $4,
			end_date = $5,
			venue_name = $6,
			venue_address = $7,
			venue_city = $8,
			registration_deadline = $9,
			max_teams = $10,
			default_budget = $11,
			auction_type = $12,
			allow_late_registration = $13
		WHERE id = $14`

	result, err := executor.ExecContext(ctx, query,
		t.Name, t.Description, t.Sport, t.StartDate, t.EndDate,
		t.Venue.Name, t.Venue.Address, t.Venue.City, t.RegistrationDeadline,
		t.Settings.MaxTeams, t.Settings.DefaultBudget, t.Settings.AuctionType, t.Settings.AllowLateRegistration,
		t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatusFrom(ctx context.Context, exec SQLExecutor, id int, next models.TournamentStatus, allowedFrom []models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = ANY($3)`
	result, err := executor.ExecContext(ctx, query, next, id, statusStrings(allowedFrom))
	if err != nil {
		return r.handleTournamentError(err)
	}

	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing tournament from a status precondition failure.
		var exists bool
		if err := executor.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tournaments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrTournamentNotFound
		}
		return ErrTournamentInvalidTransition
	}
	return nil
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	executor := r.getExecutor(nil)
	query := `DELETE FROM tournaments WHERE id = $1`
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateBannerKey(ctx context.Context, id int, bannerKey *string) error {
	executor := r.getExecutor(nil)
	query := `UPDATE tournaments SET banner_key = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, bannerKey, id)
	if err != nil {
		return fmt.Errorf("failed to update tournament banner key: %w", err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// AddStaff appends staffID atomically; the guard keeps the set free of
// duplicates and never lets the creator become staff.
func (r *postgresTournamentRepository) AddStaff(ctx context.Context, tournamentID, staffID int) error {
	executor := r.getExecutor(nil)
	query := `
		UPDATE tournaments SET staff_ids = array_append(staff_ids, $1)
		WHERE id = $2 AND created_by <> $1 AND NOT ($1 = ANY(staff_ids))`
	result, err := executor.ExecContext(ctx, query, staffID, tournamentID)
	if err != nil {
		return err
	}

	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		t, getErr := r.GetByID(ctx, tournamentID)
		if getErr != nil {
			return getErr
		}
		if t.CreatedBy == staffID {
			return ErrStaffIsOrganizer
		}
		return ErrStaffAlreadyAdded
	}
	return nil
}

func (r *postgresTournamentRepository) RemoveStaff(ctx context.Context, tournamentID, staffID int) error {
	executor := r.getExecutor(nil)
	query := `
		UPDATE tournaments SET staff_ids = array_remove(staff_ids, $1)
		WHERE id = $2 AND $1 = ANY(staff_ids)`
	result, err := executor.ExecContext(ctx, query, staffID, tournamentID)
	if err != nil {
		return err
	}

	affected, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, tournamentID); getErr != nil {
			return getErr
		}
		return ErrStaffNotMember
	}
	return nil
}

func (r *postgresTournamentRepository) IsOrganizer(ctx context.Context, tournamentID, userID int) (bool, error) {
	executor := r.getExecutor(nil)
	query := `SELECT EXISTS(SELECT 1 FROM tournaments WHERE id = $1 AND created_by = $2)`
	var ok bool
	if err := executor.QueryRowContext(ctx, query, tournamentID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *postgresTournamentRepository) IsOrganizerOrStaff(ctx context.Context, tournamentID, userID int) (bool, error) {
	executor := r.getExecutor(nil)
	query := `SELECT EXISTS(SELECT 1 FROM tournaments WHERE id = $1 AND (created_by = $2 OR $2 = ANY(staff_ids)))`
	var ok bool
	if err := executor.QueryRowContext(ctx, query, tournamentID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			if pqErr.Constraint == "tournaments_created_by_name_key" {
				return ErrTournamentNameConflict
			}
		case "23503":
			if pqErr.Constraint == "tournaments_created_by_fkey" {
				return ErrTournamentInvalidOrganizer
			}
		}
	}
	return err
}
