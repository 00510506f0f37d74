package testsupport

import (
	"context"
	"testing"

	"tailspot/internal/flightlog"
	"tailspot/internal/store"
)

// NewCandidate builds a pending Heathrow candidate for the registration.
// Callers adjust fields before seeding when a test needs something else.
func NewCandidate(registration, source, sourcePhotoID string) *store.CandidatePhoto {
	return &store.CandidatePhoto{
		Source:        source,
		SourcePhotoID: sourcePhotoID,
		PageURL:       "https://photos.example/photo/" + sourcePhotoID,
		ThumbnailURL:  "https://photos.example/thumb/" + sourcePhotoID + ".jpg",
		Registration:  flightlog.CanonicalRegistration(registration),
		AirportRaw:    "London - Heathrow (LHR / EGLL)",
		AirportCode:   "LHR",
		Photographer:  "Test Spotter",
	}
}

// SeedCandidate inserts a candidate and fails the test if it already existed.
func SeedCandidate(t testing.TB, st *store.Store, photo *store.CandidatePhoto) *store.CandidatePhoto {
	t.Helper()

	created, err := st.UpsertCandidate(context.Background(), photo)
	if err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	if !created {
		t.Fatalf("candidate %s/%s already existed", photo.Source, photo.SourcePhotoID)
	}
	return photo
}
