package models

import "time"

// RegistrationStatus — статусы заявки игрока.
// pending — начальный; rejected и withdrawn — терминальные.
type RegistrationStatus string

const (
	RegistrationStatusPending   RegistrationStatus = "pending"
	RegistrationStatusApproved  RegistrationStatus = "approved"
	RegistrationStatusRejected  RegistrationStatus = "rejected"
	RegistrationStatusAuctioned RegistrationStatus = "auctioned"
	RegistrationStatusAssigned  RegistrationStatus = "assigned"
	RegistrationStatusWithdrawn RegistrationStatus = "withdrawn"
)

type SkillLevel string

const (
	SkillLevelBeginner     SkillLevel = "beginner"
	SkillLevelIntermediate SkillLevel = "intermediate"
	SkillLevelAdvanced     SkillLevel = "advanced"
	SkillLevelProfessional SkillLevel = "professional"
)

type PlayerGender string

const (
	PlayerGenderMale   PlayerGender = "male"
	PlayerGenderFemale PlayerGender = "female"
)

const DefaultBasePrice = 1000

// PlayerProfile — данные игрока, зафиксированные на момент подачи заявки.
type PlayerProfile struct {
	Name       string       `json:"name" db:"player_name"`
	Age        int          `json:"age" db:"player_age"`
	Gender     PlayerGender `json:"gender" db:"player_gender"`
	Phone      string       `json:"phone" db:"player_phone"`
	PhotoKey   *string      `json:"-" db:"photo_key"`
	PhotoURL   *string      `json:"photo_url,omitempty" db:"-"`
	SkillLevel *SkillLevel  `json:"skill_level,omitempty" db:"skill_level"`
}

// AuctionData — ценовые данные заявки. SoldPrice заполняется только при
// аукционном назначении, никогда при ручном.
type AuctionData struct {
	BasePrice   int        `json:"base_price" db:"base_price"`
	SoldPrice   *int       `json:"sold_price,omitempty" db:"sold_price"`
	AuctionedAt *time.Time `json:"auctioned_at,omitempty" db:"auctioned_at"`
}

// Registration связывает игрока с категорией турнира.
// TeamID установлен тогда и только тогда, когда статус auctioned или assigned.
// Пара (player, tournament, category) уникальна.
type Registration struct {
	ID           int                `json:"id" db:"id"`
	PlayerID     int                `json:"player_id" db:"player_id"`
	TournamentID int                `json:"tournament_id" db:"tournament_id"`
	CategoryID   int                `json:"category_id" db:"category_id"`
	Profile      PlayerProfile      `json:"profile"`
	Status       RegistrationStatus `json:"status" db:"status"`
	TeamID       *int               `json:"team_id,omitempty" db:"team_id"`
	AuctionData  AuctionData        `json:"auction_data"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`

	Team *Team `json:"team,omitempty" db:"-"`
}
