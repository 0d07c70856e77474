package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурсы не найдены
	ErrTournamentNotFound   = errors.New("tournament not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrSportConfigNotFound  = errors.New("sport config not found")

	// Перекрёстные ссылки между сущностями (тоже "не найдено")
	ErrTeamNotInTournament     = errors.New("team not found in this tournament")
	ErrCategoryNotInTournament = errors.New("category not found in this tournament")

	// Ошибки авторизации
	ErrForbidden     = errors.New("operation not allowed for the current user")
	ErrOrganizerOnly = errors.New("only the tournament organizer can perform this action")
	ErrNotOwner      = errors.New("only the owner of the registration can perform this action")

	// Недопустимые переходы статусов
	ErrTournamentInvalidTransition   = errors.New("tournament status transition not allowed")
	ErrCategoryInvalidTransition     = errors.New("category status transition not allowed")
	ErrRegistrationInvalidTransition = errors.New("registration status transition not allowed")
	ErrRegistrationNotAssigned       = errors.New("player is not assigned to any team")
	ErrRegistrationNotOpen           = errors.New("tournament is not open for registration")

	// Бюджет
	ErrInsufficientBudget = errors.New("team does not have sufficient budget")
	ErrNegativeAmount     = errors.New("amount cannot be negative")

	// Конфликты
	ErrTournamentNameConflict = errors.New("tournament name already exists for this organizer")
	ErrCategoryNameConflict   = errors.New("a category with this name already exists in the tournament")
	ErrTeamNameConflict       = errors.New("a team with this name already exists in the tournament")
	ErrRegistrationConflict   = errors.New("player is already registered for this category")
	ErrStaffAlreadyAdded      = errors.New("user is already staff for this tournament")
	ErrStaffNotMember         = errors.New("user is not staff for this tournament")
	ErrOrganizerCannotBeStaff = errors.New("tournament organizer cannot be added as staff")
	ErrTeamLimitReached       = errors.New("maximum team limit reached for this tournament")

	// Валидация
	ErrTournamentNameRequired    = errors.New("tournament name is required")
	ErrTournamentStartInPast     = errors.New("tournament start date must be in the future")
	ErrTournamentInvalidDates    = errors.New("tournament end date must be after start date")
	ErrTournamentInvalidDeadline = errors.New("registration deadline must be before start date")
	ErrHybridConfigRequired      = errors.New("hybrid config (league_size, top_n) is required for hybrid bracket type")
	ErrHybridConfigInvalid       = errors.New("top_n must be less than league_size")
	ErrProfileIncomplete         = errors.New("player profile is incomplete")

	// Аутентификация
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrAuthEmailTaken         = errors.New("email is already taken")
	ErrPasswordTooShort       = errors.New("password is too short")
)
