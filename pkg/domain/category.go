package domain

import (
	"strings"

	dErrors "arsenal/pkg/domain-errors"
)

// QuotaCategory is the client class an import quota is partitioned by.
// Invariant: the value must be one of the supported categories.
//
// Usage: construct via ParseQuotaCategory at trust boundaries; direct casting
// bypasses validation.
type QuotaCategory string

const (
	CategoryCivil     QuotaCategory = "civil"
	CategoryMilitary  QuotaCategory = "military"
	CategoryCorporate QuotaCategory = "corporate"
	CategorySportsman QuotaCategory = "sportsman"
)

var validCategories = map[QuotaCategory]bool{
	CategoryCivil:     true,
	CategoryMilitary:  true,
	CategoryCorporate: true,
	CategorySportsman: true,
}

// ParseQuotaCategory constructs a QuotaCategory from external input.
// Matching is case-insensitive.
func ParseQuotaCategory(s string) (QuotaCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "category cannot be empty")
	}
	c := QuotaCategory(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid category: "+s)
	}
	return c, nil
}

func (c QuotaCategory) IsValid() bool {
	return validCategories[c]
}

func (c QuotaCategory) String() string {
	return string(c)
}

// AllCategories lists categories in display order.
func AllCategories() []QuotaCategory {
	return []QuotaCategory{CategoryCivil, CategoryMilitary, CategoryCorporate, CategorySportsman}
}
