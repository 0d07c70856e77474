package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	TournamentStatusDraft              TournamentStatus = "draft"
	TournamentStatusRegistrationOpen   TournamentStatus = "registration_open"
	TournamentStatusRegistrationClosed TournamentStatus = "registration_closed"
	TournamentStatusAuctionInProgress  TournamentStatus = "auction_in_progress"
	TournamentStatusOngoing            TournamentStatus = "ongoing"
	TournamentStatusCompleted          TournamentStatus = "completed"
	TournamentStatusCancelled          TournamentStatus = "cancelled"
)

// AuctionType задаёт режим проведения аукциона. Режим live — только метка,
// движок ставок здесь не реализован.
type AuctionType string

const (
	AuctionTypeManual AuctionType = "manual"
	AuctionTypeLive   AuctionType = "live"
)

type Sport string

const (
	SportBadminton   Sport = "badminton"
	SportCricket     Sport = "cricket"
	SportFootball    Sport = "football"
	SportKabaddi     Sport = "kabaddi"
	SportTableTennis Sport = "table_tennis"
	SportTennis      Sport = "tennis"
)

// Venue — место проведения турнира.
type Venue struct {
	Name        string  `json:"name" db:"venue_name"`
	Address     *string `json:"address,omitempty" db:"venue_address"`
	City        string  `json:"city" db:"venue_city"`
	Coordinates *LatLng `json:"coordinates,omitempty" db:"-"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TournamentSettings — настройки, задаваемые организатором при создании.
type TournamentSettings struct {
	MaxTeams              int         `json:"max_teams" db:"max_teams"`
	DefaultBudget         int         `json:"default_budget" db:"default_budget"`
	AuctionType           AuctionType `json:"auction_type" db:"auction_type"`
	AllowLateRegistration bool        `json:"allow_late_registration" db:"allow_late_registration"`
}

// Tournament представляет турнир. CreatedBy неизменяем после создания;
// StaffIDs не содержит дубликатов и никогда не содержит CreatedBy.
type Tournament struct {
	ID                   int                `json:"id" db:"id"`
	Name                 string             `json:"name" db:"name"`
	Description          *string            `json:"description,omitempty" db:"description"`
	Sport                Sport              `json:"sport" db:"sport"`
	BannerKey            *string            `json:"-" db:"banner_key"`
	BannerURL            *string            `json:"banner_url,omitempty" db:"-"`
	StartDate            time.Time          `json:"start_date" db:"start_date"`
	EndDate              time.Time          `json:"end_date" db:"end_date"`
	Venue                Venue              `json:"venue"`
	RegistrationDeadline time.Time          `json:"registration_deadline" db:"registration_deadline"`
	Status               TournamentStatus   `json:"status" db:"status"`
	CreatedBy            int                `json:"created_by" db:"created_by"`
	StaffIDs             []int              `json:"staff_ids" db:"staff_ids"`
	Settings             TournamentSettings `json:"settings"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Organizer  *User      `json:"organizer,omitempty" db:"-"`
	Categories []Category `json:"categories,omitempty" db:"-"`
	Teams      []Team     `json:"teams,omitempty" db:"-"`
}
