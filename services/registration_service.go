package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
	"github.com/opencourt/tournament-backend/storage"
)

type RegisterInput struct {
	CategoryID int                  `json:"category_id"`
	Profile    models.PlayerProfile `json:"profile"`
	BasePrice  *int                 `json:"base_price"`
}

// BulkDecisionResult — результат одной заявки в пакетной операции.
type BulkDecisionResult struct {
	RegistrationID int    `json:"registration_id"`
	OK             bool   `json:"ok"`
	Error          string `json:"error,omitempty"`
}

type RegistrationService struct {
	repo           repositories.RegistrationRepository
	tournamentRepo repositories.TournamentRepository
	categoryRepo   repositories.CategoryRepository
	guard          AuthorizationGuard
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewRegistrationService(
	repo repositories.RegistrationRepository,
	tournamentRepo repositories.TournamentRepository,
	categoryRepo repositories.CategoryRepository,
	guard AuthorizationGuard,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		repo:           repo,
		tournamentRepo: tournamentRepo,
		categoryRepo:   categoryRepo,
		guard:          guard,
		uploader:       uploader,
		logger:         logger,
	}
}

// Register подаёт заявку игрока в категорию турнира. Турнир должен быть в
// статусе registration_open, категория — принадлежать этому турниру.
func (s *RegistrationService) Register(ctx context.Context, tournamentID, playerID int, input RegisterInput) (*models.Registration, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if tournament.Status != models.TournamentStatusRegistrationOpen {
		return nil, ErrRegistrationNotOpen
	}

	category, err := s.categoryRepo.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, mapCategoryRepoError(err)
	}
	if category.TournamentID != tournamentID {
		return nil, ErrCategoryNotInTournament
	}

	if err := validateProfile(input.Profile); err != nil {
		return nil, err
	}

	basePrice := models.DefaultBasePrice
	if input.BasePrice != nil {
		if *input.BasePrice < 0 {
			return nil, ErrNegativeAmount
		}
		basePrice = *input.BasePrice
	}

	reg := &models.Registration{
		PlayerID:     playerID,
		TournamentID: tournamentID,
		CategoryID:   input.CategoryID,
		Profile:      input.Profile,
		Status:       models.RegistrationStatusPending,
		AuctionData:  models.AuctionData{BasePrice: basePrice},
	}

	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	return reg, nil
}

func (s *RegistrationService) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	s.populatePhotoURL(reg)
	return reg, nil
}

// MyRegistrations возвращает все заявки игрока по всем турнирам.
func (s *RegistrationService) MyRegistrations(ctx context.Context, playerID int) ([]models.Registration, error) {
	regs, err := s.repo.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	for i := range regs {
		s.populatePhotoURL(&regs[i])
	}
	return regs, nil
}

// Withdraw отзывает заявку. Доступно только её владельцу и только из
// статусов pending и approved.
func (s *RegistrationService) Withdraw(ctx context.Context, id, playerID int) (*models.Registration, error) {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	if reg.PlayerID != playerID {
		return nil, ErrNotOwner
	}

	err = s.repo.UpdateStatusFrom(ctx, id, models.RegistrationStatusWithdrawn, []models.RegistrationStatus{
		models.RegistrationStatusPending,
		models.RegistrationStatusApproved,
	})
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}

	reg.Status = models.RegistrationStatusWithdrawn
	return reg, nil
}

func (s *RegistrationService) ListByTournament(ctx context.Context, tournamentID, userID int, filter repositories.ListRegistrationsFilter) ([]models.Registration, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, tournamentID, userID); err != nil {
		return nil, err
	}
	regs, err := s.repo.ListByTournament(ctx, tournamentID, filter)
	if err != nil {
		return nil, err
	}
	for i := range regs {
		s.populatePhotoURL(&regs[i])
	}
	return regs, nil
}

func (s *RegistrationService) ListByCategory(ctx context.Context, categoryID int) ([]models.Registration, error) {
	if _, err := s.categoryRepo.GetByID(ctx, categoryID); err != nil {
		return nil, mapCategoryRepoError(err)
	}
	regs, err := s.repo.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	for i := range regs {
		s.populatePhotoURL(&regs[i])
	}
	return regs, nil
}

// Approve переводит заявку pending -> approved.
func (s *RegistrationService) Approve(ctx context.Context, id, userID int) (*models.Registration, error) {
	return s.decide(ctx, id, userID, models.RegistrationStatusApproved)
}

// Reject переводит заявку pending -> rejected. Статус терминальный.
func (s *RegistrationService) Reject(ctx context.Context, id, userID int) (*models.Registration, error) {
	return s.decide(ctx, id, userID, models.RegistrationStatusRejected)
}

func (s *RegistrationService) decide(ctx context.Context, id, userID int, next models.RegistrationStatus) (*models.Registration, error) {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, reg.TournamentID, userID); err != nil {
		return nil, err
	}

	err = s.repo.UpdateStatusFrom(ctx, id, next, []models.RegistrationStatus{models.RegistrationStatusPending})
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}

	reg.Status = next
	return reg, nil
}

// BulkApprove одобряет пакет заявок. Ошибки по отдельным заявкам не
// прерывают остальные; каждая заявка получает свой результат.
func (s *RegistrationService) BulkApprove(ctx context.Context, tournamentID, userID int, ids []int) ([]BulkDecisionResult, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, tournamentID, userID); err != nil {
		return nil, err
	}

	results := make([]BulkDecisionResult, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			res := BulkDecisionResult{RegistrationID: id, OK: true}

			reg, err := s.repo.GetByID(gctx, id)
			switch {
			case err != nil:
				err = mapRegistrationRepoError(err)
			case reg.TournamentID != tournamentID:
				err = ErrRegistrationNotFound
			default:
				err = mapRegistrationRepoError(s.repo.UpdateStatusFrom(gctx, id,
					models.RegistrationStatusApproved,
					[]models.RegistrationStatus{models.RegistrationStatusPending}))
			}
			if err != nil {
				res.OK = false
				res.Error = err.Error()
			}

			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// TeamRoster возвращает заявки, закреплённые за командой.
func (s *RegistrationService) TeamRoster(ctx context.Context, teamID int) ([]models.Registration, error) {
	regs, err := s.repo.ListByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	for i := range regs {
		s.populatePhotoURL(&regs[i])
	}
	return regs, nil
}

// AvailableForAuction — одобренные заявки категории без команды,
// то есть текущий пул лотов аукциона.
func (s *RegistrationService) AvailableForAuction(ctx context.Context, categoryID int) ([]models.Registration, error) {
	if _, err := s.categoryRepo.GetByID(ctx, categoryID); err != nil {
		return nil, mapCategoryRepoError(err)
	}
	regs, err := s.repo.ListApprovedUnassigned(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	for i := range regs {
		s.populatePhotoURL(&regs[i])
	}
	return regs, nil
}

func (s *RegistrationService) UploadPhoto(ctx context.Context, id, playerID int, contentType string, file io.Reader) (*models.Registration, error) {
	reg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	if reg.PlayerID != playerID {
		return nil, ErrNotOwner
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("registrations/%d/photo%s", id, ext)

	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload player photo: %w", err)
	}
	if err := s.repo.UpdatePhotoKey(ctx, id, &key); err != nil {
		return nil, mapRegistrationRepoError(err)
	}

	reg.Profile.PhotoKey = &key
	s.populatePhotoURL(reg)
	return reg, nil
}

func (s *RegistrationService) populatePhotoURL(reg *models.Registration) {
	if reg != nil && reg.Profile.PhotoKey != nil && *reg.Profile.PhotoKey != "" && s.uploader != nil {
		url := s.uploader.GetPublicURL(*reg.Profile.PhotoKey)
		if url != "" {
			reg.Profile.PhotoURL = &url
		}
	}
}

func validateProfile(p models.PlayerProfile) error {
	if strings.TrimSpace(p.Name) == "" || p.Age <= 0 || strings.TrimSpace(p.Phone) == "" {
		return ErrProfileIncomplete
	}
	if p.Gender != models.PlayerGenderMale && p.Gender != models.PlayerGenderFemale {
		return ErrProfileIncomplete
	}
	return nil
}

func mapRegistrationRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrRegistrationNotFound):
		return ErrRegistrationNotFound
	case errors.Is(err, repositories.ErrRegistrationConflict):
		return ErrRegistrationConflict
	case errors.Is(err, repositories.ErrRegistrationInvalidReference):
		return ErrCategoryNotInTournament
	case errors.Is(err, repositories.ErrRegistrationInvalidTransition):
		return ErrRegistrationInvalidTransition
	default:
		return err
	}
}
