package models

import (
	"fmt"
	"strings"
)

// VenueContext selects which history ledger and reward catalog apply to a match.
type VenueContext string

const (
	VenueDefault   VenueContext = "default"
	VenueAlternate VenueContext = "alternate"
)

// ParseVenueContext treats an empty value as the default context.
func ParseVenueContext(s string) (VenueContext, error) {
	switch VenueContext(strings.ToLower(strings.TrimSpace(s))) {
	case "", VenueDefault:
		return VenueDefault, nil
	case VenueAlternate:
		return VenueAlternate, nil
	default:
		return "", fmt.Errorf("unknown venue context %q", s)
	}
}

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
	DiscountFree    DiscountType = "free_item"
)

type RewardDefinition struct {
	ID              int          `json:"id" db:"id"`
	VenueContext    VenueContext `json:"venue_context" db:"venue_context"`
	AchievementKey  string       `json:"achievement_key" db:"achievement_key"`
	Name            string       `json:"name" db:"name"`
	Description     string       `json:"description,omitempty" db:"description"`
	DiscountType    DiscountType `json:"discount_type" db:"discount_type"`
	DiscountValue   float64      `json:"discount_value" db:"discount_value"`
	ProductCategory string       `json:"product_category" db:"product_category"`
	Active          bool         `json:"active" db:"active"`
}

type ResolvedReward struct {
	PlayerID        string       `json:"player_id"`
	AchievementKey  string       `json:"achievement_key"`
	RewardID        int          `json:"reward_id"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	DiscountType    DiscountType `json:"discount_type"`
	DiscountValue   float64      `json:"discount_value"`
	ProductCategory string       `json:"product_category"`
}
