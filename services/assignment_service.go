package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opencourt/tournament-backend/auction"
	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
)

// compensationRetryDelay — пауза между повторами компенсирующего кредита.
const compensationRetryDelay = 200 * time.Millisecond

// AssignmentService координирует привязку игроков к командам: дебет бюджета
// и запись заявки — два отдельных шага, поэтому при отказе второго шага
// первый откатывается компенсирующей операцией.
//
// Порядок всегда один: сначала деньги, потом заявка. Дебет — условный
// UPDATE, так что два параллельных аукциона не уведут бюджет в минус;
// запись заявки — условный UPDATE по ожидаемому статусу, так что заявку
// нельзя продать дважды.
type AssignmentService struct {
	regRepo        repositories.RegistrationRepository
	teamRepo       repositories.TeamRepository
	tournamentRepo repositories.TournamentRepository
	guard          AuthorizationGuard
	hub            AuctionBroadcaster
	logger         *slog.Logger
}

func NewAssignmentService(
	regRepo repositories.RegistrationRepository,
	teamRepo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	guard AuthorizationGuard,
	hub AuctionBroadcaster,
	logger *slog.Logger,
) *AssignmentService {
	return &AssignmentService{
		regRepo:        regRepo,
		teamRepo:       teamRepo,
		tournamentRepo: tournamentRepo,
		guard:          guard,
		hub:            hub,
		logger:         logger,
	}
}

// AssignViaAuction продаёт одобренную заявку команде за soldPrice.
// Списание бюджета и перевод approved -> auctioned не атомарны между собой:
// если перевод не прошёл (заявку успели продать, отозвать или отклонить),
// списанная сумма возвращается компенсирующим кредитом.
func (s *AssignmentService) AssignViaAuction(ctx context.Context, regID, teamID, soldPrice, userID int) (*models.Registration, error) {
	if soldPrice < 0 {
		return nil, ErrNegativeAmount
	}

	reg, err := s.regRepo.GetByID(ctx, regID)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, reg.TournamentID, userID); err != nil {
		return nil, err
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if team.TournamentID != reg.TournamentID {
		return nil, ErrTeamNotInTournament
	}
	// Заведомо непродаваемую заявку отклоняем до списания, чтобы не гонять
	// цикл debit/компенсация. Решающей остаётся условная MarkAuctioned ниже.
	if reg.Status != models.RegistrationStatusApproved {
		return nil, ErrRegistrationInvalidTransition
	}

	// Шаг 1: условное списание.
	if err := s.teamRepo.DebitBudget(ctx, nil, teamID, soldPrice); err != nil {
		return nil, mapTeamRepoError(err)
	}

	// Шаг 2: условный перевод заявки. При отказе — компенсация списания.
	if err := s.regRepo.MarkAuctioned(ctx, nil, regID, teamID, soldPrice); err != nil {
		s.compensateCredit(teamID, soldPrice, regID)
		return nil, mapRegistrationRepoError(err)
	}

	s.broadcast(reg.TournamentID, auction.EventPlayerSold, map[string]interface{}{
		"registration_id": regID,
		"team_id":         teamID,
		"sold_price":      soldPrice,
	})
	s.logger.Info("player sold at auction",
		"registration_id", regID, "team_id", teamID, "sold_price", soldPrice)

	return s.reload(ctx, regID)
}

// ManualAssign закрепляет заявку за командой вручную, без списания бюджета.
// Если заявка уже была продана другой команде, её sold_price сначала
// возвращается прежней команде, и лишь затем заявка переписывается.
// Запись заявки защищена снимком (прежняя команда, прежняя цена): если
// между возвратом и записью заявку кто-то изменил, возврат откатывается
// повторным списанием.
func (s *AssignmentService) ManualAssign(ctx context.Context, regID, teamID, userID int) (*models.Registration, error) {
	reg, err := s.regRepo.GetByID(ctx, regID)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, reg.TournamentID, userID); err != nil {
		return nil, err
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if team.TournamentID != reg.TournamentID {
		return nil, ErrTeamNotInTournament
	}

	prevTeamID := reg.TeamID
	prevSoldPrice := reg.AuctionData.SoldPrice

	// Шаг 1: возврат цены прежней команде, если заявка была аукционной.
	refunded := 0
	if prevTeamID != nil && prevSoldPrice != nil && *prevSoldPrice > 0 {
		if err := s.teamRepo.CreditBudget(ctx, nil, *prevTeamID, *prevSoldPrice); err != nil {
			return nil, mapTeamRepoError(err)
		}
		refunded = *prevSoldPrice
	}

	// Шаг 2: запись заявки, защищённая снимком. При отказе возврат
	// откатывается повторным списанием той же суммы.
	if err := s.regRepo.MarkAssigned(ctx, nil, regID, teamID, prevTeamID, prevSoldPrice); err != nil {
		if refunded > 0 {
			s.compensateDebit(*prevTeamID, refunded, regID)
		}
		return nil, mapRegistrationRepoError(err)
	}

	s.broadcast(reg.TournamentID, auction.EventPlayerAssigned, map[string]interface{}{
		"registration_id": regID,
		"team_id":         teamID,
	})
	s.logger.Info("player assigned manually",
		"registration_id", regID, "team_id", teamID, "refunded", refunded)

	return s.reload(ctx, regID)
}

// Unassign снимает игрока с команды и возвращает заявку в approved.
// Аукционная цена возвращается команде до записи заявки; если запись не
// прошла, возврат откатывается.
func (s *AssignmentService) Unassign(ctx context.Context, regID, userID int) (*models.Registration, error) {
	reg, err := s.regRepo.GetByID(ctx, regID)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	if err := requireOrganizerOrStaff(ctx, s.guard, reg.TournamentID, userID); err != nil {
		return nil, err
	}
	if reg.TeamID == nil {
		return nil, ErrRegistrationNotAssigned
	}

	teamID := *reg.TeamID
	prevSoldPrice := reg.AuctionData.SoldPrice

	refunded := 0
	if prevSoldPrice != nil && *prevSoldPrice > 0 {
		if err := s.teamRepo.CreditBudget(ctx, nil, teamID, *prevSoldPrice); err != nil {
			return nil, mapTeamRepoError(err)
		}
		refunded = *prevSoldPrice
	}

	if err := s.regRepo.ClearAssignment(ctx, nil, regID, teamID, prevSoldPrice); err != nil {
		if refunded > 0 {
			s.compensateDebit(teamID, refunded, regID)
		}
		return nil, mapRegistrationRepoError(err)
	}

	s.broadcast(reg.TournamentID, auction.EventPlayerUnassigned, map[string]interface{}{
		"registration_id": regID,
		"team_id":         teamID,
	})
	s.logger.Info("player unassigned",
		"registration_id", regID, "team_id", teamID, "refunded", refunded)

	return s.reload(ctx, regID)
}

// compensateCredit возвращает команде списанную сумму. Кредит безусловный,
// поэтому единственная причина отказа — недоступность базы; повторяем до
// успеха, чтобы деньги не потерялись.
func (s *AssignmentService) compensateCredit(teamID, amount, regID int) {
	s.compensate(teamID, amount, regID, "credit", func(ctx context.Context) error {
		return s.teamRepo.CreditBudget(ctx, nil, teamID, amount)
	})
}

// compensateDebit откатывает возврат, сделанный перед неудавшейся записью
// заявки. Сумма была на счету команды мгновение назад, но чтобы не увести
// бюджет в минус при гонке, повторяем именно условное списание.
func (s *AssignmentService) compensateDebit(teamID, amount, regID int) {
	s.compensate(teamID, amount, regID, "debit", func(ctx context.Context) error {
		err := s.teamRepo.DebitBudget(ctx, nil, teamID, amount)
		if errors.Is(err, repositories.ErrTeamInsufficientBudget) {
			// Бюджет уже потратили в параллельной продаже. Откатить нечем;
			// фиксируем в логе для ручного разбора.
			s.logger.Error("compensating debit impossible, budget already spent",
				"team_id", teamID, "amount", amount, "registration_id", regID)
			return nil
		}
		return err
	})
}

func (s *AssignmentService) compensate(teamID, amount, regID int, kind string, op func(context.Context) error) {
	// Отдельный контекст: компенсация обязана пережить отмену запроса.
	ctx := context.Background()
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				s.logger.Info("budget compensation succeeded after retries",
					"kind", kind, "team_id", teamID, "amount", amount, "attempts", attempt)
			}
			return
		}
		if errors.Is(err, repositories.ErrTeamNotFound) {
			s.logger.Error("budget compensation target missing",
				"kind", kind, "team_id", teamID, "amount", amount, "registration_id", regID)
			return
		}
		s.logger.Warn("budget compensation failed, retrying",
			"kind", kind, "team_id", teamID, "amount", amount,
			"attempt", attempt, "error", err)
		time.Sleep(compensationRetryDelay)
	}
}

func (s *AssignmentService) broadcast(tournamentID int, eventType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(auction.RoomID(tournamentID), auction.Event{
		Type:    eventType,
		Payload: payload,
	})
}

func (s *AssignmentService) reload(ctx context.Context, regID int) (*models.Registration, error) {
	reg, err := s.regRepo.GetByID(ctx, regID)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	return reg, nil
}
