package services

import (
	"context"
	"errors"

	"github.com/opencourt/tournament-backend/auction"
	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
)

type CreateCategoryInput struct {
	Name         string                `json:"name"`
	Gender       models.CategoryGender `json:"gender"`
	AgeGroup     models.AgeGroup       `json:"age_group"`
	MatchType    models.MatchType      `json:"match_type"`
	MatchFormat  models.MatchFormat    `json:"match_format"`
	BracketType  models.BracketType    `json:"bracket_type"`
	HybridConfig *models.HybridConfig  `json:"hybrid_config"`
}

type UpdateCategoryInput struct {
	Name         *string                `json:"name"`
	Gender       *models.CategoryGender `json:"gender"`
	AgeGroup     *models.AgeGroup       `json:"age_group"`
	MatchType    *models.MatchType      `json:"match_type"`
	MatchFormat  *models.MatchFormat    `json:"match_format"`
	BracketType  *models.BracketType    `json:"bracket_type"`
	HybridConfig *models.HybridConfig   `json:"hybrid_config"`
}

type CategoryService struct {
	repo           repositories.CategoryRepository
	tournamentRepo repositories.TournamentRepository
	guard          AuthorizationGuard
	hub            AuctionBroadcaster
}

func NewCategoryService(
	repo repositories.CategoryRepository,
	tournamentRepo repositories.TournamentRepository,
	guard AuthorizationGuard,
	hub AuctionBroadcaster,
) *CategoryService {
	return &CategoryService{
		repo:           repo,
		tournamentRepo: tournamentRepo,
		guard:          guard,
		hub:            hub,
	}
}

func (s *CategoryService) Create(ctx context.Context, tournamentID, userID int, input CreateCategoryInput) (*models.Category, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, tournamentID, userID); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByName(ctx, tournamentID, input.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCategoryNameConflict
	}

	if err := validateHybridConfig(input.BracketType, input.HybridConfig); err != nil {
		return nil, err
	}

	category := &models.Category{
		TournamentID: tournamentID,
		Name:         input.Name,
		Gender:       input.Gender,
		AgeGroup:     input.AgeGroup,
		MatchType:    input.MatchType,
		MatchFormat:  input.MatchFormat,
		BracketType:  input.BracketType,
		HybridConfig: input.HybridConfig,
		Status:       models.CategoryStatusSetup,
	}
	if category.BracketType != models.BracketTypeHybrid {
		category.HybridConfig = nil
	}

	if err := s.repo.Create(ctx, category); err != nil {
		return nil, mapCategoryRepoError(err)
	}
	return category, nil
}

func (s *CategoryService) GetByID(ctx context.Context, id int) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapCategoryRepoError(err)
	}
	return category, nil
}

func (s *CategoryService) ListByTournament(ctx context.Context, tournamentID int) ([]models.Category, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.repo.ListByTournament(ctx, tournamentID)
}

func (s *CategoryService) Update(ctx context.Context, id, userID int, input UpdateCategoryInput) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapCategoryRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, category.TournamentID, userID); err != nil {
		return nil, err
	}

	if input.Name != nil && *input.Name != category.Name {
		exists, err := s.repo.ExistsByName(ctx, category.TournamentID, *input.Name)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrCategoryNameConflict
		}
		category.Name = *input.Name
	}
	if input.Gender != nil {
		category.Gender = *input.Gender
	}
	if input.AgeGroup != nil {
		category.AgeGroup = *input.AgeGroup
	}
	if input.MatchType != nil {
		category.MatchType = *input.MatchType
	}
	if input.MatchFormat != nil {
		category.MatchFormat = *input.MatchFormat
	}
	if input.BracketType != nil {
		category.BracketType = *input.BracketType
	}
	if input.HybridConfig != nil {
		category.HybridConfig = input.HybridConfig
	}

	if err := validateHybridConfig(category.BracketType, category.HybridConfig); err != nil {
		return nil, err
	}
	if category.BracketType != models.BracketTypeHybrid {
		category.HybridConfig = nil
	}

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, mapCategoryRepoError(err)
	}
	return category, nil
}

// Delete доступен только создателю турнира.
func (s *CategoryService) Delete(ctx context.Context, id, userID int) error {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapCategoryRepoError(err)
	}
	if err := requireOrganizer(ctx, s.guard, category.TournamentID, userID); err != nil {
		return err
	}
	return mapCategoryRepoError(s.repo.Delete(ctx, id))
}

// --- Жизненный цикл ---
//
// Цепочка setup -> registration -> auction -> bracket_configured -> ongoing
// -> completed, без пропусков и без отмены. Статус родительского турнира
// не проверяется: категория живёт по собственному расписанию.

func (s *CategoryService) OpenRegistration(ctx context.Context, id, userID int) (*models.Category, error) {
	return s.transition(ctx, id, userID, models.CategoryStatusRegistration, models.CategoryStatusSetup)
}

func (s *CategoryService) StartAuction(ctx context.Context, id, userID int) (*models.Category, error) {
	return s.transition(ctx, id, userID, models.CategoryStatusAuction, models.CategoryStatusRegistration)
}

func (s *CategoryService) ConfigureBracket(ctx context.Context, id, userID int) (*models.Category, error) {
	return s.transition(ctx, id, userID, models.CategoryStatusBracketConfigured, models.CategoryStatusAuction)
}

func (s *CategoryService) StartCategory(ctx context.Context, id, userID int) (*models.Category, error) {
	return s.transition(ctx, id, userID, models.CategoryStatusOngoing, models.CategoryStatusBracketConfigured)
}

func (s *CategoryService) CompleteCategory(ctx context.Context, id, userID int) (*models.Category, error) {
	return s.transition(ctx, id, userID, models.CategoryStatusCompleted, models.CategoryStatusOngoing)
}

func (s *CategoryService) transition(ctx context.Context, id, userID int, next models.CategoryStatus, requiredFrom models.CategoryStatus) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapCategoryRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, category.TournamentID, userID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatusFrom(ctx, nil, id, next, requiredFrom); err != nil {
		return nil, mapCategoryRepoError(err)
	}

	category.Status = next
	if s.hub != nil {
		s.hub.BroadcastToRoom(auction.RoomID(category.TournamentID), auction.Event{
			Type:    auction.EventCategoryStatus,
			Payload: map[string]interface{}{"category_id": id, "status": next},
		})
	}
	return category, nil
}

func validateHybridConfig(bracketType models.BracketType, cfg *models.HybridConfig) error {
	if bracketType != models.BracketTypeHybrid {
		return nil
	}
	if cfg == nil || cfg.LeagueSize == 0 || cfg.TopN == 0 {
		return ErrHybridConfigRequired
	}
	if cfg.TopN >= cfg.LeagueSize {
		return ErrHybridConfigInvalid
	}
	return nil
}

func mapCategoryRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrCategoryNotFound):
		return ErrCategoryNotFound
	case errors.Is(err, repositories.ErrCategoryNameConflict):
		return ErrCategoryNameConflict
	case errors.Is(err, repositories.ErrCategoryInvalidTransition):
		return ErrCategoryInvalidTransition
	case errors.Is(err, repositories.ErrCategoryInvalidTournament):
		return ErrTournamentNotFound
	default:
		return err
	}
}
