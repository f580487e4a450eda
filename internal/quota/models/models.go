package models

import (
	"maps"
	"time"

	"github.com/google/uuid"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
)

// GroupType decides whether category limits apply.
type GroupType string

const (
	GroupTypeQuota         GroupType = "QUOTA"
	GroupTypeJustification GroupType = "JUSTIFICATION"
)

func (t GroupType) IsValid() bool {
	return t == GroupTypeQuota || t == GroupTypeJustification
}

// Dimension names the limit that blocked an admission. It is the Reason on
// a quota_exceeded error.
type Dimension string

const (
	DimensionTotal    Dimension = "total"
	DimensionCategory Dimension = "category"
	DimensionVendor   Dimension = "vendor"
)

// Limits configured for one import group. A category or vendor missing from
// its map has no limit; a present zero admits nothing.
type Limits struct {
	Total      int                      `json:"total"`
	Categories map[id.QuotaCategory]int `json:"categories,omitempty"`
	Vendors    map[id.VendorID]int      `json:"vendors,omitempty"`
}

func (l Limits) Validate() error {
	if l.Total < 0 {
		return dErrors.New(dErrors.CodeValidation, "total quota cannot be negative")
	}
	for c, v := range l.Categories {
		if !c.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid category: "+string(c))
		}
		if v < 0 {
			return dErrors.New(dErrors.CodeValidation, "category quota cannot be negative")
		}
	}
	for _, v := range l.Vendors {
		if v < 0 {
			return dErrors.New(dErrors.CodeValidation, "vendor limit cannot be negative")
		}
	}
	return nil
}

func (l Limits) Clone() Limits {
	return Limits{Total: l.Total, Categories: maps.Clone(l.Categories), Vendors: maps.Clone(l.Vendors)}
}

// Ledger holds the limits and consumption counters for one import group.
//
// Invariants:
//   - ConsumedTotal <= Limits.Total after any admit
//   - for quota groups, ConsumedCategory[c] <= Limits.Categories[c] when configured
//   - ConsumedVendor[v] <= Limits.Vendors[v] when configured, for both group types
//   - counters never go negative
type Ledger struct {
	ImportGroupID    id.ImportGroupID         `json:"import_group_id"`
	Type             GroupType                `json:"type"`
	Limits           Limits                   `json:"limits"`
	ConsumedTotal    int                      `json:"consumed_total"`
	ConsumedCategory map[id.QuotaCategory]int `json:"consumed_category"`
	ConsumedVendor   map[id.VendorID]int      `json:"consumed_vendor"`
	Version          int64                    `json:"version"`
}

func NewLedger(groupID id.ImportGroupID, groupType GroupType, limits Limits) (*Ledger, error) {
	if !groupType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid import group type")
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		ImportGroupID:    groupID,
		Type:             groupType,
		Limits:           limits.Clone(),
		ConsumedCategory: make(map[id.QuotaCategory]int),
		ConsumedVendor:   make(map[id.VendorID]int),
	}, nil
}

// CanAdmit reports the first exceeded dimension, checked total, category, vendor.
func (l *Ledger) CanAdmit(category id.QuotaCategory, vendor id.VendorID, quantity int) error {
	if quantity < 1 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be at least 1")
	}
	if l.ConsumedTotal+quantity > l.Limits.Total {
		return exceeded(DimensionTotal, "import group total quota exceeded")
	}
	if l.Type == GroupTypeQuota {
		if limit, ok := l.Limits.Categories[category]; ok && l.ConsumedCategory[category]+quantity > limit {
			return exceeded(DimensionCategory, "category "+string(category)+" quota exceeded")
		}
	}
	if limit, ok := l.Limits.Vendors[vendor]; ok && l.ConsumedVendor[vendor]+quantity > limit {
		return exceeded(DimensionVendor, "vendor limit exceeded")
	}
	return nil
}

func (l *Ledger) ApplyAdmit(category id.QuotaCategory, vendor id.VendorID, quantity int) {
	l.ensureMaps()
	l.ConsumedTotal += quantity
	l.ConsumedCategory[category] += quantity
	l.ConsumedVendor[vendor] += quantity
}

// ApplyRelease decrements the counters, flooring each at zero. It returns the
// dimensions that would have gone negative.
func (l *Ledger) ApplyRelease(category id.QuotaCategory, vendor id.VendorID, quantity int) []Dimension {
	l.ensureMaps()
	var floored []Dimension
	if l.ConsumedTotal < quantity {
		floored = append(floored, DimensionTotal)
	}
	l.ConsumedTotal = max(l.ConsumedTotal-quantity, 0)

	if l.ConsumedCategory[category] < quantity {
		floored = append(floored, DimensionCategory)
	}
	l.ConsumedCategory[category] = max(l.ConsumedCategory[category]-quantity, 0)

	if l.ConsumedVendor[vendor] < quantity {
		floored = append(floored, DimensionVendor)
	}
	l.ConsumedVendor[vendor] = max(l.ConsumedVendor[vendor]-quantity, 0)
	return floored
}

// CanUpdateLimits rejects any limit below what is already consumed.
func (l *Ledger) CanUpdateLimits(next Limits) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if next.Total < l.ConsumedTotal {
		return dErrors.WithReason(dErrors.CodeConflict, string(DimensionTotal), "total quota below current consumption")
	}
	for c, limit := range next.Categories {
		if limit < l.ConsumedCategory[c] {
			return dErrors.WithReason(dErrors.CodeConflict, string(DimensionCategory), "category "+string(c)+" quota below current consumption")
		}
	}
	for v, limit := range next.Vendors {
		if limit < l.ConsumedVendor[v] {
			return dErrors.WithReason(dErrors.CodeConflict, string(DimensionVendor), "vendor limit below current consumption")
		}
	}
	return nil
}

func (l *Ledger) ApplyLimits(next Limits) {
	l.Limits = next.Clone()
}

// Remaining is the group summary. Only configured dimensions appear.
type Remaining struct {
	ImportGroupID id.ImportGroupID         `json:"import_group_id"`
	Type          GroupType                `json:"type"`
	Total         int                      `json:"total"`
	Categories    map[id.QuotaCategory]int `json:"categories"`
	Vendors       map[id.VendorID]int      `json:"vendors"`
}

func (l *Ledger) Remaining() Remaining {
	r := Remaining{
		ImportGroupID: l.ImportGroupID,
		Type:          l.Type,
		Total:         max(l.Limits.Total-l.ConsumedTotal, 0),
		Categories:    make(map[id.QuotaCategory]int),
		Vendors:       make(map[id.VendorID]int),
	}
	if l.Type == GroupTypeQuota {
		for c, limit := range l.Limits.Categories {
			r.Categories[c] = max(limit-l.ConsumedCategory[c], 0)
		}
	}
	for v, limit := range l.Limits.Vendors {
		r.Vendors[v] = max(limit-l.ConsumedVendor[v], 0)
	}
	return r
}

func (l *Ledger) Clone() *Ledger {
	cp := *l
	cp.Limits = l.Limits.Clone()
	cp.ConsumedCategory = maps.Clone(l.ConsumedCategory)
	cp.ConsumedVendor = maps.Clone(l.ConsumedVendor)
	cp.ensureMaps()
	return &cp
}

func (l *Ledger) ensureMaps() {
	if l.ConsumedCategory == nil {
		l.ConsumedCategory = make(map[id.QuotaCategory]int)
	}
	if l.ConsumedVendor == nil {
		l.ConsumedVendor = make(map[id.VendorID]int)
	}
}

// Admission is the receipt for a successful admit. Release takes the same
// category, vendor and quantity.
type Admission struct {
	Token         uuid.UUID        `json:"token"`
	ImportGroupID id.ImportGroupID `json:"import_group_id"`
	Category      id.QuotaCategory `json:"category"`
	VendorID      id.VendorID      `json:"vendor_id"`
	Quantity      int              `json:"quantity"`
	AdmittedAt    time.Time        `json:"admitted_at"`
}

func exceeded(dim Dimension, msg string) error {
	return dErrors.WithReason(dErrors.CodeQuotaExceeded, string(dim), msg)
}
