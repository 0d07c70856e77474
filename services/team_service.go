package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
	"github.com/opencourt/tournament-backend/storage"
)

type CreateTeamInput struct {
	Name           string           `json:"name"`
	PrimaryColor   *string          `json:"primary_color"`
	SecondaryColor *string          `json:"secondary_color"`
	Owner          models.TeamOwner `json:"owner"`
	InitialBudget  *int             `json:"initial_budget"`
}

type UpdateTeamInput struct {
	Name           *string           `json:"name"`
	PrimaryColor   *string           `json:"primary_color"`
	SecondaryColor *string           `json:"secondary_color"`
	Owner          *models.TeamOwner `json:"owner"`
}

type TeamService struct {
	repo           repositories.TeamRepository
	tournamentRepo repositories.TournamentRepository
	guard          AuthorizationGuard
	uploader       storage.FileUploader
}

func NewTeamService(
	repo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	guard AuthorizationGuard,
	uploader storage.FileUploader,
) *TeamService {
	return &TeamService{
		repo:           repo,
		tournamentRepo: tournamentRepo,
		guard:          guard,
		uploader:       uploader,
	}
}

func (s *TeamService) Create(ctx context.Context, tournamentID, userID int, input CreateTeamInput) (*models.Team, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, tournamentID, userID); err != nil {
		return nil, err
	}

	count, err := s.repo.CountByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if count >= tournament.Settings.MaxTeams {
		return nil, ErrTeamLimitReached
	}

	initialBudget := tournament.Settings.DefaultBudget
	if input.InitialBudget != nil {
		if *input.InitialBudget < 0 {
			return nil, ErrNegativeAmount
		}
		initialBudget = *input.InitialBudget
	}

	team := &models.Team{
		TournamentID:   tournamentID,
		Name:           input.Name,
		PrimaryColor:   input.PrimaryColor,
		SecondaryColor: input.SecondaryColor,
		Owner:          input.Owner,
		Budget:         initialBudget,
		InitialBudget:  initialBudget,
	}

	if err := s.repo.Create(ctx, team); err != nil {
		return nil, mapTeamRepoError(err)
	}
	return team, nil
}

func (s *TeamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	s.populateLogoURL(team)
	return team, nil
}

func (s *TeamService) ListByTournament(ctx context.Context, tournamentID int) ([]models.Team, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	teams, err := s.repo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		s.populateLogoURL(&teams[i])
	}
	return teams, nil
}

func (s *TeamService) Update(ctx context.Context, id, userID int, input UpdateTeamInput) (*models.Team, error) {
	team, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, team.TournamentID, userID); err != nil {
		return nil, err
	}

	if input.Name != nil {
		team.Name = *input.Name
	}
	if input.PrimaryColor != nil {
		team.PrimaryColor = input.PrimaryColor
	}
	if input.SecondaryColor != nil {
		team.SecondaryColor = input.SecondaryColor
	}
	if input.Owner != nil {
		team.Owner = *input.Owner
	}

	if err := s.repo.Update(ctx, team); err != nil {
		return nil, mapTeamRepoError(err)
	}
	return team, nil
}

// Delete доступен только создателю турнира.
func (s *TeamService) Delete(ctx context.Context, id, userID int) error {
	team, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapTeamRepoError(err)
	}
	if err := requireOrganizer(ctx, s.guard, team.TournamentID, userID); err != nil {
		return err
	}
	return mapTeamRepoError(s.repo.Delete(ctx, id))
}

// UpdateBudget — административная запись абсолютного значения бюджета,
// вне аукционных потоков.
func (s *TeamService) UpdateBudget(ctx context.Context, id, userID, budget int) (*models.Team, error) {
	team, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, team.TournamentID, userID); err != nil {
		return nil, err
	}
	if budget < 0 {
		return nil, ErrNegativeAmount
	}

	if err := s.repo.SetBudget(ctx, id, budget); err != nil {
		return nil, mapTeamRepoError(err)
	}
	team.Budget = budget
	return team, nil
}

// ResetBudget безусловно возвращает бюджет к initial_budget.
func (s *TeamService) ResetBudget(ctx context.Context, id, userID int) (*models.Team, error) {
	team, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, team.TournamentID, userID); err != nil {
		return nil, err
	}

	if err := s.repo.ResetBudget(ctx, id); err != nil {
		return nil, mapTeamRepoError(err)
	}
	team.Budget = team.InitialBudget
	return team, nil
}

func (s *TeamService) UploadLogo(ctx context.Context, id, userID int, contentType string, file io.Reader) (*models.Team, error) {
	team, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, team.TournamentID, userID); err != nil {
		return nil, err
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("teams/%d/logo%s", id, ext)

	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}
	if err := s.repo.UpdateLogoKey(ctx, id, &key); err != nil {
		return nil, mapTeamRepoError(err)
	}

	team.LogoKey = &key
	s.populateLogoURL(team)
	return team, nil
}

func (s *TeamService) populateLogoURL(t *models.Team) {
	if t != nil && t.LogoKey != nil && *t.LogoKey != "" && s.uploader != nil {
		url := s.uploader.GetPublicURL(*t.LogoKey)
		if url != "" {
			t.LogoURL = &url
		}
	}
}

func mapTeamRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrTeamNameConflict
	case errors.Is(err, repositories.ErrTeamInvalidTournament):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTeamInsufficientBudget):
		return ErrInsufficientBudget
	case errors.Is(err, repositories.ErrTeamNegativeAmount):
		return ErrNegativeAmount
	default:
		return err
	}
}
