package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
)

type assignmentFixture struct {
	svc      *AssignmentService
	tourRepo *fakeTournamentRepo
	teamRepo *fakeTeamRepo
	regRepo  *fakeRegistrationRepo
	hub      *fakeHub

	organizerID  int
	tournamentID int
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()

	tourRepo := newFakeTournamentRepo()
	teamRepo := newFakeTeamRepo()
	regRepo := newFakeRegistrationRepo()
	hub := &fakeHub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &assignmentFixture{
		svc:         NewAssignmentService(regRepo, teamRepo, tourRepo, tourRepo, hub, logger),
		tourRepo:    tourRepo,
		teamRepo:    teamRepo,
		regRepo:     regRepo,
		hub:         hub,
		organizerID: 1,
	}

	tournament := &models.Tournament{
		Name:      "Spring Open",
		Sport:     models.SportBadminton,
		Status:    models.TournamentStatusAuctionInProgress,
		CreatedBy: f.organizerID,
	}
	if err := tourRepo.Create(context.Background(), tournament); err != nil {
		t.Fatalf("seed tournament: %v", err)
	}
	f.tournamentID = tournament.ID
	return f
}

func (f *assignmentFixture) addTeam(t *testing.T, name string, budget int) int {
	t.Helper()
	team := &models.Team{
		TournamentID:  f.tournamentID,
		Name:          name,
		Budget:        budget,
		InitialBudget: budget,
	}
	if err := f.teamRepo.Create(context.Background(), team); err != nil {
		t.Fatalf("seed team %s: %v", name, err)
	}
	return team.ID
}

func (f *assignmentFixture) addApprovedRegistration(t *testing.T, playerID int) int {
	t.Helper()
	reg := &models.Registration{
		PlayerID:     playerID,
		TournamentID: f.tournamentID,
		CategoryID:   1,
		Status:       models.RegistrationStatusApproved,
		AuctionData:  models.AuctionData{BasePrice: models.DefaultBasePrice},
	}
	if err := f.regRepo.Create(context.Background(), reg); err != nil {
		t.Fatalf("seed registration: %v", err)
	}
	return reg.ID
}

func (f *assignmentFixture) teamBudget(t *testing.T, teamID int) int {
	t.Helper()
	team, err := f.teamRepo.GetByID(context.Background(), teamID)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	return team.Budget
}

func TestAssignViaAuction(t *testing.T) {
	t.Run("debits budget and marks registration", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)
		regID := f.addApprovedRegistration(t, 10)

		reg, err := f.svc.AssignViaAuction(context.Background(), regID, teamID, 300, f.organizerID)
		if err != nil {
			t.Fatalf("AssignViaAuction: %v", err)
		}
		if reg.Status != models.RegistrationStatusAuctioned {
			t.Errorf("status = %s, want %s", reg.Status, models.RegistrationStatusAuctioned)
		}
		if reg.TeamID == nil || *reg.TeamID != teamID {
			t.Errorf("team_id = %v, want %d", reg.TeamID, teamID)
		}
		if reg.AuctionData.SoldPrice == nil || *reg.AuctionData.SoldPrice != 300 {
			t.Errorf("sold_price = %v, want 300", reg.AuctionData.SoldPrice)
		}
		if got := f.teamBudget(t, teamID); got != 700 {
			t.Errorf("budget = %d, want 700", got)
		}

		types := f.hub.eventTypes()
		if len(types) != 1 || types[0] != "PLAYER_SOLD" {
			t.Errorf("broadcast events = %v, want [PLAYER_SOLD]", types)
		}
	})

	t.Run("insufficient budget leaves registration untouched", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 200)
		regID := f.addApprovedRegistration(t, 10)

		_, err := f.svc.AssignViaAuction(context.Background(), regID, teamID, 300, f.organizerID)
		if !errors.Is(err, ErrInsufficientBudget) {
			t.Fatalf("err = %v, want ErrInsufficientBudget", err)
		}

		reg, _ := f.regRepo.GetByID(context.Background(), regID)
		if reg.Status != models.RegistrationStatusApproved {
			t.Errorf("status = %s, want approved", reg.Status)
		}
		if got := f.teamBudget(t, teamID); got != 200 {
			t.Errorf("budget = %d, want 200", got)
		}
	})

	t.Run("compensates debit when registration is withdrawn mid-flight", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)
		regID := f.addApprovedRegistration(t, 10)

		// Заявка отзывается между списанием и MarkAuctioned.
		f.teamRepo.onDebit = func() {
			if err := f.regRepo.UpdateStatusFrom(context.Background(), regID, models.RegistrationStatusWithdrawn,
				[]models.RegistrationStatus{models.RegistrationStatusApproved}); err != nil {
				t.Errorf("withdraw: %v", err)
			}
		}

		_, err := f.svc.AssignViaAuction(context.Background(), regID, teamID, 300, f.organizerID)
		if !errors.Is(err, ErrRegistrationInvalidTransition) {
			t.Fatalf("err = %v, want ErrRegistrationInvalidTransition", err)
		}
		if got := f.teamBudget(t, teamID); got != 1000 {
			t.Errorf("budget after compensation = %d, want 1000", got)
		}
	})

	t.Run("rejects non-approved registration before touching the budget", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)
		regID := f.addApprovedRegistration(t, 10)

		if err := f.regRepo.UpdateStatusFrom(context.Background(), regID, models.RegistrationStatusWithdrawn,
			[]models.RegistrationStatus{models.RegistrationStatusApproved}); err != nil {
			t.Fatalf("withdraw: %v", err)
		}

		debits := 0
		f.teamRepo.onDebit = func() { debits++ }

		_, err := f.svc.AssignViaAuction(context.Background(), regID, teamID, 300, f.organizerID)
		if !errors.Is(err, ErrRegistrationInvalidTransition) {
			t.Fatalf("err = %v, want ErrRegistrationInvalidTransition", err)
		}
		if debits != 0 {
			t.Errorf("debits = %d, want 0", debits)
		}
		if got := f.teamBudget(t, teamID); got != 1000 {
			t.Errorf("budget = %d, want 1000", got)
		}
	})

	t.Run("rejects negative price", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)
		regID := f.addApprovedRegistration(t, 10)

		if _, err := f.svc.AssignViaAuction(context.Background(), regID, teamID, -1, f.organizerID); !errors.Is(err, ErrNegativeAmount) {
			t.Fatalf("err = %v, want ErrNegativeAmount", err)
		}
	})

	t.Run("ledger rejects negative amounts", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)

		// Отрицательное списание прошло бы проверку budget >= $1 и
		// превратилось бы в кредит; примитив отсекает его сам.
		if err := f.teamRepo.DebitBudget(context.Background(), nil, teamID, -300); !errors.Is(err, repositories.ErrTeamNegativeAmount) {
			t.Fatalf("DebitBudget err = %v, want ErrTeamNegativeAmount", err)
		}
		if err := f.teamRepo.CreditBudget(context.Background(), nil, teamID, -300); !errors.Is(err, repositories.ErrTeamNegativeAmount) {
			t.Fatalf("CreditBudget err = %v, want ErrTeamNegativeAmount", err)
		}
		if got := f.teamBudget(t, teamID); got != 1000 {
			t.Errorf("budget = %d, want 1000", got)
		}
	})

	t.Run("rejects team from another tournament", func(t *testing.T) {
		f := newAssignmentFixture(t)
		regID := f.addApprovedRegistration(t, 10)

		other := &models.Tournament{Name: "Other", Sport: models.SportTennis, Status: models.TournamentStatusAuctionInProgress, CreatedBy: f.organizerID}
		if err := f.tourRepo.Create(context.Background(), other); err != nil {
			t.Fatalf("seed other tournament: %v", err)
		}
		foreign := &models.Team{TournamentID: other.ID, Name: "Outsiders", Budget: 1000, InitialBudget: 1000}
		if err := f.teamRepo.Create(context.Background(), foreign); err != nil {
			t.Fatalf("seed foreign team: %v", err)
		}

		if _, err := f.svc.AssignViaAuction(context.Background(), regID, foreign.ID, 100, f.organizerID); !errors.Is(err, ErrTeamNotInTournament) {
			t.Fatalf("err = %v, want ErrTeamNotInTournament", err)
		}
	})

	t.Run("forbidden for non-staff user", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)
		regID := f.addApprovedRegistration(t, 10)

		if _, err := f.svc.AssignViaAuction(context.Background(), regID, teamID, 100, 999); !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestUnassign(t *testing.T) {
	t.Run("refunds auction price and returns registration to approved", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)
		regID := f.addApprovedRegistration(t, 10)

		if _, err := f.svc.AssignViaAuction(context.Background(), regID, teamID, 300, f.organizerID); err != nil {
			t.Fatalf("AssignViaAuction: %v", err)
		}

		reg, err := f.svc.Unassign(context.Background(), regID, f.organizerID)
		if err != nil {
			t.Fatalf("Unassign: %v", err)
		}
		if reg.Status != models.RegistrationStatusApproved {
			t.Errorf("status = %s, want approved", reg.Status)
		}
		if reg.TeamID != nil {
			t.Errorf("team_id = %v, want nil", reg.TeamID)
		}
		if got := f.teamBudget(t, teamID); got != 1000 {
			t.Errorf("budget after refund = %d, want 1000", got)
		}
	})

	t.Run("unassigned registration is rejected", func(t *testing.T) {
		f := newAssignmentFixture(t)
		regID := f.addApprovedRegistration(t, 10)

		if _, err := f.svc.Unassign(context.Background(), regID, f.organizerID); !errors.Is(err, ErrRegistrationNotAssigned) {
			t.Fatalf("err = %v, want ErrRegistrationNotAssigned", err)
		}
	})

	t.Run("manual assignment releases without refund", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)
		regID := f.addApprovedRegistration(t, 10)

		if _, err := f.svc.ManualAssign(context.Background(), regID, teamID, f.organizerID); err != nil {
			t.Fatalf("ManualAssign: %v", err)
		}
		if _, err := f.svc.Unassign(context.Background(), regID, f.organizerID); err != nil {
			t.Fatalf("Unassign: %v", err)
		}
		if got := f.teamBudget(t, teamID); got != 1000 {
			t.Errorf("budget = %d, want 1000 (manual assignment is free)", got)
		}
	})
}

func TestManualAssign(t *testing.T) {
	t.Run("moving an auctioned player refunds the selling price", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamA := f.addTeam(t, "Alpha", 1000)
		teamB := f.addTeam(t, "Beta", 1000)
		regID := f.addApprovedRegistration(t, 10)

		if _, err := f.svc.AssignViaAuction(context.Background(), regID, teamA, 400, f.organizerID); err != nil {
			t.Fatalf("AssignViaAuction: %v", err)
		}

		reg, err := f.svc.ManualAssign(context.Background(), regID, teamB, f.organizerID)
		if err != nil {
			t.Fatalf("ManualAssign: %v", err)
		}
		if reg.Status != models.RegistrationStatusAssigned {
			t.Errorf("status = %s, want assigned", reg.Status)
		}
		if reg.AuctionData.SoldPrice != nil {
			t.Errorf("sold_price = %v, want nil after manual assignment", reg.AuctionData.SoldPrice)
		}
		if got := f.teamBudget(t, teamA); got != 1000 {
			t.Errorf("previous team budget = %d, want refunded 1000", got)
		}
		if got := f.teamBudget(t, teamB); got != 1000 {
			t.Errorf("new team budget = %d, want untouched 1000", got)
		}
	})

	t.Run("pending registration cannot be assigned", func(t *testing.T) {
		f := newAssignmentFixture(t)
		teamID := f.addTeam(t, "Falcons", 1000)

		reg := &models.Registration{
			PlayerID:     10,
			TournamentID: f.tournamentID,
			CategoryID:   1,
			Status:       models.RegistrationStatusPending,
		}
		if err := f.regRepo.Create(context.Background(), reg); err != nil {
			t.Fatalf("seed registration: %v", err)
		}

		if _, err := f.svc.ManualAssign(context.Background(), reg.ID, teamID, f.organizerID); !errors.Is(err, ErrRegistrationInvalidTransition) {
			t.Fatalf("err = %v, want ErrRegistrationInvalidTransition", err)
		}
	})
}

// Сценарий из жизни аукциона: продажа, снятие, попытка продажи дороже бюджета.
func TestAuctionBudgetRoundTrip(t *testing.T) {
	f := newAssignmentFixture(t)
	teamID := f.addTeam(t, "Falcons", 1000)
	first := f.addApprovedRegistration(t, 10)
	second := f.addApprovedRegistration(t, 11)

	if _, err := f.svc.AssignViaAuction(context.Background(), first, teamID, 300, f.organizerID); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if got := f.teamBudget(t, teamID); got != 700 {
		t.Fatalf("budget after sale = %d, want 700", got)
	}

	if _, err := f.svc.AssignViaAuction(context.Background(), second, teamID, 1500, f.organizerID); !errors.Is(err, ErrInsufficientBudget) {
		t.Fatalf("oversized bid err = %v, want ErrInsufficientBudget", err)
	}

	if _, err := f.svc.Unassign(context.Background(), first, f.organizerID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if got := f.teamBudget(t, teamID); got != 1000 {
		t.Fatalf("budget after refund = %d, want 1000", got)
	}

	// Теперь бюджет позволяет и более дорогую покупку не проходит по-прежнему.
	if _, err := f.svc.AssignViaAuction(context.Background(), second, teamID, 1000, f.organizerID); err != nil {
		t.Fatalf("second sale: %v", err)
	}
	if got := f.teamBudget(t, teamID); got != 0 {
		t.Fatalf("budget = %d, want 0", got)
	}
}

func TestConcurrentAuctionSingleWinner(t *testing.T) {
	f := newAssignmentFixture(t)
	regID := f.addApprovedRegistration(t, 10)

	const teams = 8
	teamIDs := make([]int, teams)
	for i := 0; i < teams; i++ {
		teamIDs[i] = f.addTeam(t, "Team "+string(rune('A'+i)), 1000)
	}

	var wg sync.WaitGroup
	successes := make(chan int, teams)
	for _, teamID := range teamIDs {
		wg.Add(1)
		go func(teamID int) {
			defer wg.Done()
			if _, err := f.svc.AssignViaAuction(context.Background(), regID, teamID, 500, f.organizerID); err == nil {
				successes <- teamID
			}
		}(teamID)
	}
	wg.Wait()
	close(successes)

	var winners []int
	for id := range successes {
		winners = append(winners, id)
	}
	if len(winners) != 1 {
		t.Fatalf("winners = %v, want exactly one", winners)
	}

	// Деньги списаны только у победителя, остальные бюджеты целы.
	for _, teamID := range teamIDs {
		want := 1000
		if teamID == winners[0] {
			want = 500
		}
		if got := f.teamBudget(t, teamID); got != want {
			t.Errorf("team %d budget = %d, want %d", teamID, got, want)
		}
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newAssignmentFixture(t)
	teamID := f.addTeam(t, "Falcons", 1000)

	const players = 10
	regIDs := make([]int, players)
	for i := 0; i < players; i++ {
		regIDs[i] = f.addApprovedRegistration(t, 100+i)
	}

	var wg sync.WaitGroup
	for _, regID := range regIDs {
		wg.Add(1)
		go func(regID int) {
			defer wg.Done()
			// Каждая продажа за 300: бюджета хватает максимум на три.
			_, _ = f.svc.AssignViaAuction(context.Background(), regID, teamID, 300, f.organizerID)
		}(regID)
	}
	wg.Wait()

	budget := f.teamBudget(t, teamID)
	if budget < 0 {
		t.Fatalf("budget went negative: %d", budget)
	}

	sold := 0
	for _, regID := range regIDs {
		reg, _ := f.regRepo.GetByID(context.Background(), regID)
		if reg.Status == models.RegistrationStatusAuctioned {
			sold++
		}
	}
	if sold != 3 {
		t.Errorf("sold = %d, want 3 (1000 / 300)", sold)
	}
	if want := 1000 - sold*300; budget != want {
		t.Errorf("budget = %d, want %d", budget, want)
	}
}
