package services

import (
	"context"
	"errors"
	"testing"

	"github.com/opencourt/tournament-backend/models"
)

type categoryFixture struct {
	svc      *CategoryService
	catRepo  *fakeCategoryRepo
	tourRepo *fakeTournamentRepo
	hub      *fakeHub

	organizerID  int
	tournamentID int
}

func newCategoryFixture(t *testing.T) *categoryFixture {
	t.Helper()

	tourRepo := newFakeTournamentRepo()
	catRepo := newFakeCategoryRepo()
	hub := &fakeHub{}

	f := &categoryFixture{
		svc:         NewCategoryService(catRepo, tourRepo, tourRepo, hub),
		catRepo:     catRepo,
		tourRepo:    tourRepo,
		hub:         hub,
		organizerID: 1,
	}

	tournament := &models.Tournament{
		Name:      "Spring Open",
		Sport:     models.SportBadminton,
		Status:    models.TournamentStatusDraft,
		CreatedBy: f.organizerID,
	}
	if err := tourRepo.Create(context.Background(), tournament); err != nil {
		t.Fatalf("seed tournament: %v", err)
	}
	f.tournamentID = tournament.ID
	return f
}

func singlesCategoryInput(name string) CreateCategoryInput {
	return CreateCategoryInput{
		Name:        name,
		Gender:      models.CategoryGenderMale,
		MatchType:   models.MatchTypeSingles,
		BracketType: models.BracketTypeKnockout,
	}
}

func TestCategoryCreate(t *testing.T) {
	t.Run("new category starts in setup", func(t *testing.T) {
		f := newCategoryFixture(t)

		category, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Men's Singles"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if category.Status != models.CategoryStatusSetup {
			t.Errorf("status = %s, want setup", category.Status)
		}
		if category.HybridConfig != nil {
			t.Errorf("hybrid config should be dropped for non-hybrid brackets")
		}
	})

	t.Run("name is unique within the tournament", func(t *testing.T) {
		f := newCategoryFixture(t)

		if _, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Men's Singles")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		_, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Men's Singles"))
		if !errors.Is(err, ErrCategoryNameConflict) {
			t.Fatalf("err = %v, want ErrCategoryNameConflict", err)
		}
	})

	t.Run("hybrid bracket requires a valid config", func(t *testing.T) {
		f := newCategoryFixture(t)

		input := singlesCategoryInput("Hybrid Cup")
		input.BracketType = models.BracketTypeHybrid

		if _, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, input); !errors.Is(err, ErrHybridConfigRequired) {
			t.Fatalf("missing config: err = %v, want ErrHybridConfigRequired", err)
		}

		input.HybridConfig = &models.HybridConfig{LeagueSize: 4, TopN: 4}
		if _, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, input); !errors.Is(err, ErrHybridConfigInvalid) {
			t.Fatalf("top_n == league_size: err = %v, want ErrHybridConfigInvalid", err)
		}

		input.HybridConfig = &models.HybridConfig{LeagueSize: 4, TopN: 2}
		category, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, input)
		if err != nil {
			t.Fatalf("valid config: %v", err)
		}
		if category.HybridConfig == nil || category.HybridConfig.TopN != 2 {
			t.Errorf("hybrid config not preserved: %+v", category.HybridConfig)
		}
	})

	t.Run("strangers cannot create categories", func(t *testing.T) {
		f := newCategoryFixture(t)

		_, err := f.svc.Create(context.Background(), f.tournamentID, 42, singlesCategoryInput("Men's Singles"))
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestCategoryUpdate(t *testing.T) {
	t.Run("switching away from hybrid drops the config", func(t *testing.T) {
		f := newCategoryFixture(t)

		input := singlesCategoryInput("Hybrid Cup")
		input.BracketType = models.BracketTypeHybrid
		input.HybridConfig = &models.HybridConfig{LeagueSize: 4, TopN: 2}
		category, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, input)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		league := models.BracketTypeLeague
		updated, err := f.svc.Update(context.Background(), category.ID, f.organizerID, UpdateCategoryInput{BracketType: &league})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if updated.HybridConfig != nil {
			t.Errorf("hybrid config should be cleared, got %+v", updated.HybridConfig)
		}
	})

	t.Run("rename checks uniqueness", func(t *testing.T) {
		f := newCategoryFixture(t)

		if _, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Men's Singles")); err != nil {
			t.Fatalf("Create: %v", err)
		}
		second, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Women's Singles"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		taken := "Men's Singles"
		if _, err := f.svc.Update(context.Background(), second.ID, f.organizerID, UpdateCategoryInput{Name: &taken}); !errors.Is(err, ErrCategoryNameConflict) {
			t.Fatalf("err = %v, want ErrCategoryNameConflict", err)
		}
	})
}

func TestCategoryLifecycle(t *testing.T) {
	t.Run("linear chain from setup to completed", func(t *testing.T) {
		f := newCategoryFixture(t)
		category, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Men's Singles"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		steps := []struct {
			op   func(context.Context, int, int) (*models.Category, error)
			want models.CategoryStatus
		}{
			{f.svc.OpenRegistration, models.CategoryStatusRegistration},
			{f.svc.StartAuction, models.CategoryStatusAuction},
			{f.svc.ConfigureBracket, models.CategoryStatusBracketConfigured},
			{f.svc.StartCategory, models.CategoryStatusOngoing},
			{f.svc.CompleteCategory, models.CategoryStatusCompleted},
		}
		for _, step := range steps {
			got, err := step.op(context.Background(), category.ID, f.organizerID)
			if err != nil {
				t.Fatalf("transition to %s: %v", step.want, err)
			}
			if got.Status != step.want {
				t.Fatalf("status = %s, want %s", got.Status, step.want)
			}
		}

		events := f.hub.eventTypes()
		if len(events) != len(steps) {
			t.Errorf("broadcast events = %d, want %d", len(events), len(steps))
		}
	})

	t.Run("steps cannot be skipped", func(t *testing.T) {
		f := newCategoryFixture(t)
		category, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Men's Singles"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		if _, err := f.svc.StartAuction(context.Background(), category.ID, f.organizerID); !errors.Is(err, ErrCategoryInvalidTransition) {
			t.Errorf("auction from setup: err = %v, want ErrCategoryInvalidTransition", err)
		}
		if _, err := f.svc.CompleteCategory(context.Background(), category.ID, f.organizerID); !errors.Is(err, ErrCategoryInvalidTransition) {
			t.Errorf("complete from setup: err = %v, want ErrCategoryInvalidTransition", err)
		}
	})

	t.Run("staff can run transitions", func(t *testing.T) {
		f := newCategoryFixture(t)
		category, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Men's Singles"))
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		const staffID = 7
		if err := f.tourRepo.AddStaff(context.Background(), f.tournamentID, staffID); err != nil {
			t.Fatalf("add staff: %v", err)
		}
		if _, err := f.svc.OpenRegistration(context.Background(), category.ID, staffID); err != nil {
			t.Fatalf("staff transition: %v", err)
		}
		if _, err := f.svc.StartAuction(context.Background(), category.ID, 42); !errors.Is(err, ErrForbidden) {
			t.Errorf("stranger transition: err = %v, want ErrForbidden", err)
		}
	})
}

func TestCategoryDelete(t *testing.T) {
	f := newCategoryFixture(t)
	category, err := f.svc.Create(context.Background(), f.tournamentID, f.organizerID, singlesCategoryInput("Men's Singles"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const staffID = 7
	if err := f.tourRepo.AddStaff(context.Background(), f.tournamentID, staffID); err != nil {
		t.Fatalf("add staff: %v", err)
	}

	// Удаление — привилегия создателя турнира, стаффу оно недоступно.
	if err := f.svc.Delete(context.Background(), category.ID, staffID); !errors.Is(err, ErrOrganizerOnly) {
		t.Fatalf("staff delete: err = %v, want ErrOrganizerOnly", err)
	}
	if err := f.svc.Delete(context.Background(), category.ID, f.organizerID); err != nil {
		t.Fatalf("organizer delete: %v", err)
	}
	if _, err := f.svc.GetByID(context.Background(), category.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("get after delete: err = %v, want ErrCategoryNotFound", err)
	}
}
