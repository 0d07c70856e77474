package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/opencourt/tournament-backend/auction"
	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
	"github.com/opencourt/tournament-backend/storage"
)

// In-memory реализации репозиториев для тестов сервисного слоя.
// Условные обновления повторяют семантику SQL-версий: проверка
// предусловия и запись выполняются под одним мьютексом.

type fakeTournamentRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{nextID: 1, items: make(map[int]*models.Tournament)}
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.CreatedBy == t.CreatedBy && strings.EqualFold(existing.Name, t.Name) {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.nextID
	r.nextID++
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.items {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Sport != nil && t.Sport != *filter.Sport {
			continue
		}
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (r *fakeTournamentRepo) ListByOrganizerOrStaff(_ context.Context, userID int) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.items {
		if t.CreatedBy == userID || containsInt(t.StaffIDs, userID) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) UpdateStatusFrom(_ context.Context, _ repositories.SQLExecutor, id int, next models.TournamentStatus, allowedFrom []models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	for _, from := range allowedFrom {
		if t.Status == from {
			t.Status = next
			return nil
		}
	}
	return repositories.ErrTournamentInvalidTransition
}

func (r *fakeTournamentRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeTournamentRepo) UpdateBannerKey(_ context.Context, id int, bannerKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.BannerKey = bannerKey
	return nil
}

func (r *fakeTournamentRepo) AddStaff(_ context.Context, tournamentID, staffID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[tournamentID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.CreatedBy == staffID {
		return repositories.ErrStaffIsOrganizer
	}
	if containsInt(t.StaffIDs, staffID) {
		return repositories.ErrStaffAlreadyAdded
	}
	t.StaffIDs = append(t.StaffIDs, staffID)
	return nil
}

func (r *fakeTournamentRepo) RemoveStaff(_ context.Context, tournamentID, staffID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[tournamentID]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if !containsInt(t.StaffIDs, staffID) {
		return repositories.ErrStaffNotMember
	}
	out := t.StaffIDs[:0]
	for _, id := range t.StaffIDs {
		if id != staffID {
			out = append(out, id)
		}
	}
	t.StaffIDs = out
	return nil
}

func (r *fakeTournamentRepo) IsOrganizer(_ context.Context, tournamentID, userID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[tournamentID]
	if !ok {
		return false, nil
	}
	return t.CreatedBy == userID, nil
}

func (r *fakeTournamentRepo) IsOrganizerOrStaff(_ context.Context, tournamentID, userID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[tournamentID]
	if !ok {
		return false, nil
	}
	return t.CreatedBy == userID || containsInt(t.StaffIDs, userID), nil
}

type fakeCategoryRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{nextID: 1, items: make(map[int]*models.Category)}
}

func (r *fakeCategoryRepo) Create(_ context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, id int) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCategoryRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Category
	for _, c := range r.items {
		if c.TournamentID == tournamentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCategoryRepo) ExistsByName(_ context.Context, tournamentID int, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.TournamentID == tournamentID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCategoryRepo) Update(_ context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return repositories.ErrCategoryNotFound
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *fakeCategoryRepo) UpdateStatusFrom(_ context.Context, _ repositories.SQLExecutor, id int, next models.CategoryStatus, requiredFrom models.CategoryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return repositories.ErrCategoryNotFound
	}
	if c.Status != requiredFrom {
		return repositories.ErrCategoryInvalidTransition
	}
	c.Status = next
	return nil
}

func (r *fakeCategoryRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repositories.ErrCategoryNotFound
	}
	delete(r.items, id)
	return nil
}

type fakeTeamRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Team

	// onDebit, если задан, вызывается после успешного списания —
	// позволяет тестам вклиниться между debit и следующим шагом саги.
	onDebit func()
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{nextID: 1, items: make(map[int]*models.Team)}
}

func (r *fakeTeamRepo) Create(_ context.Context, t *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TournamentID == t.TournamentID && strings.EqualFold(existing.Name, t.Name) {
			return repositories.ErrTeamNameConflict
		}
	}
	t.ID = r.nextID
	r.nextID++
	cp := *t
	r.items[t.ID] = &cp
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTeamRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Team
	for _, t := range r.items {
		if t.TournamentID == tournamentID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTeamRepo) CountByTournament(_ context.Context, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.items {
		if t.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *fakeTeamRepo) Update(_ context.Context, t *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[t.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	cp := *t
	cp.Budget = existing.Budget
	cp.InitialBudget = existing.InitialBudget
	r.items[t.ID] = &cp
	return nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeTeamRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r *fakeTeamRepo) DebitBudget(_ context.Context, _ repositories.SQLExecutor, id int, amount int) error {
	if amount < 0 {
		return repositories.ErrTeamNegativeAmount
	}
	r.mu.Lock()
	t, ok := r.items[id]
	if !ok {
		r.mu.Unlock()
		return repositories.ErrTeamNotFound
	}
	if t.Budget < amount {
		r.mu.Unlock()
		return repositories.ErrTeamInsufficientBudget
	}
	t.Budget -= amount
	hook := r.onDebit
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (r *fakeTeamRepo) CreditBudget(_ context.Context, _ repositories.SQLExecutor, id int, amount int) error {
	if amount < 0 {
		return repositories.ErrTeamNegativeAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.Budget += amount
	return nil
}

func (r *fakeTeamRepo) SetBudget(_ context.Context, id int, budget int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.Budget = budget
	return nil
}

func (r *fakeTeamRepo) ResetBudget(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.Budget = t.InitialBudget
	return nil
}

type fakeRegistrationRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.Registration
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{nextID: 1, items: make(map[int]*models.Registration)}
}

func (r *fakeRegistrationRepo) Create(_ context.Context, reg *models.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.PlayerID == reg.PlayerID && existing.TournamentID == reg.TournamentID && existing.CategoryID == reg.CategoryID {
			return repositories.ErrRegistrationConflict
		}
	}
	reg.ID = r.nextID
	r.nextID++
	cp := *reg
	r.items[reg.ID] = &cp
	return nil
}

func (r *fakeRegistrationRepo) GetByID(_ context.Context, id int) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	cp := *reg
	return &cp, nil
}

func (r *fakeRegistrationRepo) ListByPlayer(_ context.Context, playerID int) ([]models.Registration, error) {
	return r.listWhere(func(reg *models.Registration) bool { return reg.PlayerID == playerID })
}

func (r *fakeRegistrationRepo) ListByTournament(_ context.Context, tournamentID int, filter repositories.ListRegistrationsFilter) ([]models.Registration, error) {
	return r.listWhere(func(reg *models.Registration) bool {
		if reg.TournamentID != tournamentID {
			return false
		}
		if filter.CategoryID != nil && reg.CategoryID != *filter.CategoryID {
			return false
		}
		if filter.Status != nil && reg.Status != *filter.Status {
			return false
		}
		if filter.TeamID != nil && (reg.TeamID == nil || *reg.TeamID != *filter.TeamID) {
			return false
		}
		return true
	})
}

func (r *fakeRegistrationRepo) ListByCategory(_ context.Context, categoryID int) ([]models.Registration, error) {
	return r.listWhere(func(reg *models.Registration) bool { return reg.CategoryID == categoryID })
}

func (r *fakeRegistrationRepo) ListByTeam(_ context.Context, teamID int) ([]models.Registration, error) {
	return r.listWhere(func(reg *models.Registration) bool {
		return reg.TeamID != nil && *reg.TeamID == teamID
	})
}

func (r *fakeRegistrationRepo) ListApprovedUnassigned(_ context.Context, categoryID int) ([]models.Registration, error) {
	return r.listWhere(func(reg *models.Registration) bool {
		return reg.CategoryID == categoryID && reg.Status == models.RegistrationStatusApproved && reg.TeamID == nil
	})
}

func (r *fakeRegistrationRepo) listWhere(match func(*models.Registration) bool) ([]models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Registration
	for _, reg := range r.items {
		if match(reg) {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (r *fakeRegistrationRepo) UpdatePhotoKey(_ context.Context, id int, photoKey *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.items[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Profile.PhotoKey = photoKey
	return nil
}

func (r *fakeRegistrationRepo) UpdateStatusFrom(_ context.Context, id int, next models.RegistrationStatus, allowedFrom []models.RegistrationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.items[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	for _, from := range allowedFrom {
		if reg.Status == from {
			reg.Status = next
			return nil
		}
	}
	return repositories.ErrRegistrationInvalidTransition
}

func (r *fakeRegistrationRepo) MarkAuctioned(_ context.Context, _ repositories.SQLExecutor, id int, teamID int, soldPrice int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.items[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	if reg.Status != models.RegistrationStatusApproved {
		return repositories.ErrRegistrationInvalidTransition
	}
	reg.Status = models.RegistrationStatusAuctioned
	reg.TeamID = &teamID
	price := soldPrice
	reg.AuctionData.SoldPrice = &price
	return nil
}

func (r *fakeRegistrationRepo) MarkAssigned(_ context.Context, _ repositories.SQLExecutor, id int, teamID int, prevTeamID *int, prevSoldPrice *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.items[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	switch reg.Status {
	case models.RegistrationStatusApproved, models.RegistrationStatusAuctioned, models.RegistrationStatusAssigned:
	default:
		return repositories.ErrRegistrationInvalidTransition
	}
	if !intPtrEqual(reg.TeamID, prevTeamID) || !intPtrEqual(reg.AuctionData.SoldPrice, prevSoldPrice) {
		return repositories.ErrRegistrationInvalidTransition
	}
	reg.Status = models.RegistrationStatusAssigned
	reg.TeamID = &teamID
	reg.AuctionData.SoldPrice = nil
	reg.AuctionData.AuctionedAt = nil
	return nil
}

func (r *fakeRegistrationRepo) ClearAssignment(_ context.Context, _ repositories.SQLExecutor, id int, prevTeamID int, prevSoldPrice *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.items[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	switch reg.Status {
	case models.RegistrationStatusAuctioned, models.RegistrationStatusAssigned:
	default:
		return repositories.ErrRegistrationInvalidTransition
	}
	if reg.TeamID == nil || *reg.TeamID != prevTeamID || !intPtrEqual(reg.AuctionData.SoldPrice, prevSoldPrice) {
		return repositories.ErrRegistrationInvalidTransition
	}
	reg.Status = models.RegistrationStatusApproved
	reg.TeamID = nil
	reg.AuctionData.SoldPrice = nil
	reg.AuctionData.AuctionedAt = nil
	return nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, items: make(map[int]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if strings.EqualFold(existing.Email, u.Email) {
			return repositories.ErrUserEmailConflict
		}
	}
	u.ID = r.nextID
	r.nextID++
	cp := *u
	r.items[u.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.items {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

// fakeHub собирает разосланные события.
type fakeHub struct {
	mu     sync.Mutex
	events []auction.Event
}

func (h *fakeHub) BroadcastToRoom(roomID string, event auction.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	event.RoomID = roomID
	h.events = append(h.events, event)
}

func (h *fakeHub) eventTypes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads []string
	deletes []string
}

func (u *fakeUploader) Upload(_ context.Context, key string, _ string, _ io.Reader) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.test/" + key}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deletes = append(u.deletes, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

// fakeSportConfigRepo хранит справочник видов спорта в памяти.
type fakeSportConfigRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[models.Sport]*models.SportConfig
}

func newFakeSportConfigRepo() *fakeSportConfigRepo {
	return &fakeSportConfigRepo{nextID: 1, items: make(map[models.Sport]*models.SportConfig)}
}

func (r *fakeSportConfigRepo) Upsert(_ context.Context, cfg *models.SportConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[cfg.Sport]; ok {
		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
	} else {
		cfg.ID = r.nextID
		r.nextID++
		cfg.CreatedAt = time.Now()
	}
	cp := *cfg
	r.items[cfg.Sport] = &cp
	return nil
}

func (r *fakeSportConfigRepo) GetBySport(_ context.Context, sport models.Sport) (*models.SportConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.items[sport]
	if !ok {
		return nil, repositories.ErrSportConfigNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (r *fakeSportConfigRepo) List(_ context.Context) ([]models.SportConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SportConfig, 0, len(r.items))
	for _, cfg := range r.items {
		out = append(out, *cfg)
	}
	return out, nil
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
