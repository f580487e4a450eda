package testutil

import (
	"net/http"
	"time"

	id "arsenal/pkg/domain"
	"arsenal/pkg/requestcontext"
)

// WithActor sets the operator the auth middleware would have put on the
// request. Invalid UUIDs are ignored.
func WithActor(req *http.Request, userID string) *http.Request {
	actor, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActorID(req.Context(), actor))
}

// WithVendor sets the selling vendor for reservation requests.
func WithVendor(req *http.Request, vendorID string) *http.Request {
	vendor, err := id.ParseVendorID(vendorID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithVendorID(req.Context(), vendor))
}

// WithTime pins the request clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
