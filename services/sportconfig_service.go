package services

import (
	"context"
	"errors"
	"strings"

	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
)

// SportConfigService управляет справочником видов спорта. Справочник
// глобальный, менять его могут только организаторы.
type SportConfigService struct {
	repo repositories.SportConfigRepository
}

func NewSportConfigService(repo repositories.SportConfigRepository) *SportConfigService {
	return &SportConfigService{repo: repo}
}

func (s *SportConfigService) Upsert(ctx context.Context, role models.UserRole, cfg *models.SportConfig) (*models.SportConfig, error) {
	if role != models.RoleOrganizer {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(cfg.DisplayName) == "" {
		cfg.DisplayName = strings.ReplaceAll(string(cfg.Sport), "_", " ")
	}
	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, mapSportConfigRepoError(err)
	}
	return cfg, nil
}

func (s *SportConfigService) GetBySport(ctx context.Context, sport models.Sport) (*models.SportConfig, error) {
	cfg, err := s.repo.GetBySport(ctx, sport)
	if err != nil {
		return nil, mapSportConfigRepoError(err)
	}
	return cfg, nil
}

func (s *SportConfigService) List(ctx context.Context) ([]models.SportConfig, error) {
	return s.repo.List(ctx)
}

func mapSportConfigRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrSportConfigNotFound):
		return ErrSportConfigNotFound
	default:
		return err
	}
}
