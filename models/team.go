package models

import "time"

type TeamOwner struct {
	Name  string  `json:"name" db:"owner_name"`
	Phone string  `json:"phone" db:"owner_phone"`
	Email *string `json:"email,omitempty" db:"owner_email"`
}

// Team — ростер одного турнира с расходуемым бюджетом.
// Budget уменьшается только дебетами и восстанавливается только кредитами,
// которые возвращают ранее списанное; отрицательным он быть не может.
type Team struct {
	ID             int       `json:"id" db:"id"`
	TournamentID   int       `json:"tournament_id" db:"tournament_id"`
	Name           string    `json:"name" db:"name"`
	PrimaryColor   *string   `json:"primary_color,omitempty" db:"primary_color"`
	SecondaryColor *string   `json:"secondary_color,omitempty" db:"secondary_color"`
	Owner          TeamOwner `json:"owner"`
	Budget         int       `json:"budget" db:"budget"`
	InitialBudget  int       `json:"initial_budget" db:"initial_budget"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`

	Players []Registration `json:"players,omitempty" db:"-"`
}
