package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"closet-go/internal/closet"
	"closet-go/internal/sessionstore"
)

var tokenKey = []byte("closet-test-signing-key")

// MintToken returns an HS256 JWT for subject that expires at exp. The client
// never verifies signatures, so the key is irrelevant.
func MintToken(subject string, exp time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tokenKey)
	if err != nil {
		panic(err)
	}
	return signed
}

// NewTestSession creates an initialized, signed-out SessionState backed by
// memory storage, and points gw's credentials at it.
func NewTestSession(t *testing.T, gw *FakeGateway) *closet.SessionState {
	t.Helper()

	state := closet.NewSessionState(sessionstore.NewMemoryStorage(), gw, FixedClock(), closet.NewNopLogger())
	gw.SetCredentials(state)
	if err := state.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return state
}

// NewSignedInSession is NewTestSession followed by a successful login.
func NewSignedInSession(t *testing.T, gw *FakeGateway) *closet.SessionState {
	t.Helper()

	state := NewTestSession(t, gw)
	err := state.Login(context.Background(), closet.Credentials{Email: DefaultEmail, Password: DefaultPassword})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return state
}

// NewReadyStore returns a Store that has loaded gw's items with a signed-in
// session.
func NewReadyStore(t *testing.T, gw *FakeGateway) (*closet.Store, *closet.SessionState) {
	t.Helper()

	state := NewSignedInSession(t, gw)
	store := closet.NewStore(gw, state, closet.NewNopLogger())
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return store, state
}
