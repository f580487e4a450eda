package models

import (
	"encoding/json"

	id "arsenal/pkg/domain"
	dErrors "arsenal/pkg/domain-errors"
	"arsenal/pkg/platform/strings"
)

// PaymentCompleted is published by the payment system once a reservation is
// fully paid. Serials lists the units handed over with that payment.
type PaymentCompleted struct {
	ReservationID string   `json:"reservation_id"`
	Serials       []string `json:"serials"`
}

// Settlement is a validated PaymentCompleted.
type Settlement struct {
	ReservationID id.ReservationID
	Serials       []string
}

// ParseSettlement decodes and validates a payment event. Serials are trimmed,
// upper-cased and deduplicated.
func ParseSettlement(raw []byte) (*Settlement, error) {
	var ev PaymentCompleted
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payment event is not valid json")
	}
	resID, err := id.ParseReservationID(ev.ReservationID)
	if err != nil {
		return nil, err
	}
	serials := strings.DedupeAndTrimUpper(ev.Serials)
	if len(serials) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "payment event lists no serials")
	}
	return &Settlement{ReservationID: resID, Serials: serials}, nil
}
