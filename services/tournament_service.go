package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/opencourt/tournament-backend/auction"
	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
	"github.com/opencourt/tournament-backend/storage"
)

// AuctionBroadcaster рассылает события жизненного цикла в комнату турнира.
type AuctionBroadcaster interface {
	BroadcastToRoom(roomID string, event auction.Event)
}

type CreateTournamentInput struct {
	Name                 string                    `json:"name"`
	Description          *string                   `json:"description"`
	Sport                models.Sport              `json:"sport"`
	StartDate            time.Time                 `json:"start_date"`
	EndDate              time.Time                 `json:"end_date"`
	Venue                models.Venue              `json:"venue"`
	RegistrationDeadline time.Time                 `json:"registration_deadline"`
	Settings             models.TournamentSettings `json:"settings"`
}

type UpdateTournamentInput struct {
	Name                 *string                    `json:"name"`
	Description          *string                    `json:"description"`
	Sport                *models.Sport              `json:"sport"`
	StartDate            *time.Time                 `json:"start_date"`
	EndDate              *time.Time                 `json:"end_date"`
	Venue                *models.Venue              `json:"venue"`
	RegistrationDeadline *time.Time                 `json:"registration_deadline"`
	Settings             *models.TournamentSettings `json:"settings"`
}

type TournamentService struct {
	repo     repositories.TournamentRepository
	guard    AuthorizationGuard
	uploader storage.FileUploader
	hub      AuctionBroadcaster
	logger   *slog.Logger
}

func NewTournamentService(
	repo repositories.TournamentRepository,
	guard AuthorizationGuard,
	uploader storage.FileUploader,
	hub AuctionBroadcaster,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		repo:     repo,
		guard:    guard,
		uploader: uploader,
		hub:      hub,
		logger:   logger,
	}
}

func (s *TournamentService) Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	if input.Name == "" {
		return nil, ErrTournamentNameRequired
	}
	if err := validateTournamentDates(input.StartDate, input.EndDate, input.RegistrationDeadline); err != nil {
		return nil, err
	}

	settings := input.Settings
	if settings.MaxTeams == 0 {
		settings.MaxTeams = 8
	}
	if settings.DefaultBudget == 0 {
		settings.DefaultBudget = 100000
	}
	if settings.AuctionType == "" {
		settings.AuctionType = models.AuctionTypeManual
	}

	tournament := &models.Tournament{
		Name:                 input.Name,
		Description:          input.Description,
		Sport:                input.Sport,
		StartDate:            input.StartDate,
		EndDate:              input.EndDate,
		Venue:                input.Venue,
		RegistrationDeadline: input.RegistrationDeadline,
		Status:               models.TournamentStatusDraft,
		CreatedBy:            organizerID,
		StaffIDs:             []int{},
		Settings:             settings,
	}

	if err := s.repo.Create(ctx, tournament); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return tournament, nil
}

func (s *TournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	s.populateBannerURL(tournament)
	return tournament, nil
}

func (s *TournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, int, error) {
	tournaments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range tournaments {
		s.populateBannerURL(&tournaments[i])
	}
	return tournaments, total, nil
}

func (s *TournamentService) ListMine(ctx context.Context, userID int) ([]models.Tournament, error) {
	tournaments, err := s.repo.ListByOrganizerOrStaff(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		s.populateBannerURL(&tournaments[i])
	}
	return tournaments, nil
}

func (s *TournamentService) Update(ctx context.Context, id, userID int, input UpdateTournamentInput) (*models.Tournament, error) {
	tournament, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, id, userID); err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrTournamentNameRequired
		}
		tournament.Name = *input.Name
	}
	if input.Description != nil {
		tournament.Description = input.Description
	}
	if input.Sport != nil {
		tournament.Sport = *input.Sport
	}
	if input.StartDate != nil {
		tournament.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		tournament.EndDate = *input.EndDate
	}
	if input.Venue != nil {
		tournament.Venue = *input.Venue
	}
	if input.RegistrationDeadline != nil {
		tournament.RegistrationDeadline = *input.RegistrationDeadline
	}
	if input.Settings != nil {
		tournament.Settings = *input.Settings
	}

	if !tournament.StartDate.Before(tournament.EndDate) {
		return nil, ErrTournamentInvalidDates
	}

	if err := s.repo.Update(ctx, tournament); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return tournament, nil
}

// Delete доступен только создателю турнира.
func (s *TournamentService) Delete(ctx context.Context, id, userID int) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return mapTournamentRepoError(err)
	}
	if err := requireOrganizer(ctx, s.guard, id, userID); err != nil {
		return err
	}
	return mapTournamentRepoError(s.repo.Delete(ctx, id))
}

// --- Жизненный цикл ---
//
// Каждый переход — отдельная операция: проверка прав, затем одиночный
// условный UPDATE по допустимым предыдущим статусам.

func (s *TournamentService) OpenRegistration(ctx context.Context, id, userID int) (*models.Tournament, error) {
	return s.transition(ctx, id, userID, models.TournamentStatusRegistrationOpen,
		[]models.TournamentStatus{models.TournamentStatusDraft})
}

func (s *TournamentService) CloseRegistration(ctx context.Context, id, userID int) (*models.Tournament, error) {
	return s.transition(ctx, id, userID, models.TournamentStatusRegistrationClosed,
		[]models.TournamentStatus{models.TournamentStatusRegistrationOpen})
}

func (s *TournamentService) StartAuction(ctx context.Context, id, userID int) (*models.Tournament, error) {
	return s.transition(ctx, id, userID, models.TournamentStatusAuctionInProgress,
		[]models.TournamentStatus{models.TournamentStatusRegistrationClosed})
}

// StartTournament допускает пропуск аукционной фазы: турнир может стартовать
// сразу после закрытия регистрации.
func (s *TournamentService) StartTournament(ctx context.Context, id, userID int) (*models.Tournament, error) {
	return s.transition(ctx, id, userID, models.TournamentStatusOngoing,
		[]models.TournamentStatus{
			models.TournamentStatusAuctionInProgress,
			models.TournamentStatusRegistrationClosed,
		})
}

func (s *TournamentService) CompleteTournament(ctx context.Context, id, userID int) (*models.Tournament, error) {
	return s.transition(ctx, id, userID, models.TournamentStatusCompleted,
		[]models.TournamentStatus{models.TournamentStatusOngoing})
}

// CancelTournament доступен только организатору и из любого статуса,
// кроме completed.
func (s *TournamentService) CancelTournament(ctx context.Context, id, userID int) (*models.Tournament, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizer(ctx, s.guard, id, userID); err != nil {
		return nil, err
	}

	allowed := []models.TournamentStatus{
		models.TournamentStatusDraft,
		models.TournamentStatusRegistrationOpen,
		models.TournamentStatusRegistrationClosed,
		models.TournamentStatusAuctionInProgress,
		models.TournamentStatusOngoing,
	}
	if err := s.repo.UpdateStatusFrom(ctx, nil, id, models.TournamentStatusCancelled, allowed); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.afterTransition(ctx, id, models.TournamentStatusCancelled)
}

func (s *TournamentService) transition(ctx context.Context, id, userID int, next models.TournamentStatus, allowedFrom []models.TournamentStatus) (*models.Tournament, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, id, userID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatusFrom(ctx, nil, id, next, allowedFrom); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.afterTransition(ctx, id, next)
}

func (s *TournamentService) afterTransition(ctx context.Context, id int, next models.TournamentStatus) (*models.Tournament, error) {
	tournament, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if s.hub != nil {
		s.hub.BroadcastToRoom(auction.RoomID(id), auction.Event{
			Type:    auction.EventTournamentStatus,
			Payload: map[string]interface{}{"tournament_id": id, "status": next},
		})
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "tournament status changed",
			slog.Int("tournament_id", id), slog.String("status", string(next)))
	}
	return tournament, nil
}

// --- Стафф ---

func (s *TournamentService) AddStaff(ctx context.Context, tournamentID, staffID, userID int) (*models.Tournament, error) {
	if _, err := s.repo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizer(ctx, s.guard, tournamentID, userID); err != nil {
		return nil, err
	}
	if err := s.repo.AddStaff(ctx, tournamentID, staffID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.repo.GetByID(ctx, tournamentID)
}

func (s *TournamentService) RemoveStaff(ctx context.Context, tournamentID, staffID, userID int) (*models.Tournament, error) {
	if _, err := s.repo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizer(ctx, s.guard, tournamentID, userID); err != nil {
		return nil, err
	}
	if err := s.repo.RemoveStaff(ctx, tournamentID, staffID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.repo.GetByID(ctx, tournamentID)
}

// --- Баннер ---

func (s *TournamentService) UploadBanner(ctx context.Context, id, userID int, contentType string, file io.Reader) (*models.Tournament, error) {
	tournament, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, id, userID); err != nil {
		return nil, err
	}

	ext, err := extensionFromContentType(contentType)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("tournaments/%d/banner%s", id, ext)

	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload tournament banner: %w", err)
	}

	oldKey := tournament.BannerKey
	if err := s.repo.UpdateBannerKey(ctx, id, &key); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if oldKey != nil && *oldKey != key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "failed to delete previous banner",
				slog.String("key", *oldKey), slog.Any("error", delErr))
		}
	}

	tournament.BannerKey = &key
	s.populateBannerURL(tournament)
	return tournament, nil
}

func (s *TournamentService) populateBannerURL(t *models.Tournament) {
	if t != nil && t.BannerKey != nil && *t.BannerKey != "" && s.uploader != nil {
		url := s.uploader.GetPublicURL(*t.BannerKey)
		if url != "" {
			t.BannerURL = &url
		}
	}
}

func mapTournamentRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrTournamentInvalidTransition):
		return ErrTournamentInvalidTransition
	case errors.Is(err, repositories.ErrStaffAlreadyAdded):
		return ErrStaffAlreadyAdded
	case errors.Is(err, repositories.ErrStaffNotMember):
		return ErrStaffNotMember
	case errors.Is(err, repositories.ErrStaffIsOrganizer):
		return ErrOrganizerCannotBeStaff
	default:
		return err
	}
}
