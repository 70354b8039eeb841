package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardStatus string

const (
	CardActive    CardStatus = "active"
	CardFrozen    CardStatus = "frozen"
	CardCancelled CardStatus = "cancelled"
)

// cardTransitions lists, for each target status, the statuses a card may move from.
// Cancelled is terminal and never appears as a source.
var cardTransitions = map[CardStatus][]CardStatus{
	CardFrozen:    {CardActive},
	CardActive:    {CardFrozen},
	CardCancelled: {CardActive, CardFrozen},
}

func (s CardStatus) Valid() bool {
	switch s {
	case CardActive, CardFrozen, CardCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a card in status s may move to status to
func (s CardStatus) CanTransitionTo(to CardStatus) bool {
	for _, from := range cardTransitions[to] {
		if from == s {
			return true
		}
	}
	return false
}

// TransitionSources returns the statuses from which a card may move to status to
func TransitionSources(to CardStatus) []CardStatus {
	sources := cardTransitions[to]
	out := make([]CardStatus, len(sources))
	copy(out, sources)
	return out
}

// VirtualCard is the user-visible record of an issued card
type VirtualCard struct {
	Id         string          `json:"id" db:"id"`
	UserId     string          `json:"user_id" db:"user_id"`
	CardToken  string          `json:"card_token" db:"card_token"`
	CardNumber string          `json:"card_number" db:"card_number"`
	ExpiryDate string          `json:"expiry_date" db:"expiry_date"`
	Status     CardStatus      `json:"status" db:"status"`
	Balance    decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// MaskCardNumber renders the stored card number from the issuer's last four digits
func MaskCardNumber(lastFour string) string {
	return "**** **** **** " + lastFour
}
