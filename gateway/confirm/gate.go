package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gate4ai/toolgate/shared"
)

// ErrTokenNotFound is returned by a TokenStore when a token is unknown or
// was already consumed.
var ErrTokenNotFound = errors.New("confirmation token not found")

// ActionSignature binds a previewed destructive action to its later
// committed execution: same operation, same resolved scope.
type ActionSignature struct {
	Operation string
	// Scope describes what the action will touch, e.g. the canonical filter
	// plus the affected count computed during the dry run.
	Scope string
}

// Fingerprint returns the hash under which the signature is stored. The
// plaintext scope never reaches the store.
func (s ActionSignature) Fingerprint() string {
	return shared.HashFingerprint(s.Operation + "\n" + s.Scope)
}

// Record is a stored, not-yet-consumed confirmation token.
type Record struct {
	SignatureHash string
	ExpiresAt     time.Time
}

// TokenStore persists confirmation tokens. Consume must atomically remove
// the token so concurrent validations cannot double-spend it.
type TokenStore interface {
	Put(ctx context.Context, token string, rec Record) error
	Consume(ctx context.Context, token string) (Record, error)
}

// Gate issues and validates the short-lived, single-use tokens required
// before a destructive bulk action executes.
type Gate struct {
	store  TokenStore
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewGate creates a confirmation gate with the given token lifetime.
func NewGate(store TokenStore, ttl time.Duration, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Gate{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock substitutes the time source; used by tests to force expiry.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Issue creates a token bound to sig, valid until the returned expiry.
func (g *Gate) Issue(ctx context.Context, sig ActionSignature) (string, time.Time, error) {
	token := uuid.NewString()
	expiresAt := g.now().Add(g.ttl).UTC()
	rec := Record{
		SignatureHash: sig.Fingerprint(),
		ExpiresAt:     expiresAt,
	}
	if err := g.store.Put(ctx, token, rec); err != nil {
		return "", time.Time{}, fmt.Errorf("store confirmation token: %w", err)
	}
	g.logger.Debug("Issued confirmation token",
		zap.String("operation", sig.Operation),
		zap.Time("expiresAt", expiresAt))
	return token, expiresAt, nil
}

// Validate consumes the token and checks it against sig. The token is spent
// on any outcome: mismatch, reuse, and expiry all fail with
// INVALID_CONFIRM_TOKEN, and a second call can never succeed.
func (g *Gate) Validate(ctx context.Context, token string, sig ActionSignature) error {
	if token == "" {
		return shared.NewError(shared.ErrorInvalidConfirmToken, "confirmation token is empty").
			WithSuggestion("run the operation with dryRun: true to obtain a token")
	}
	rec, err := g.store.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return shared.NewError(shared.ErrorInvalidConfirmToken, "confirmation token is unknown or already used").
				WithSuggestion("tokens are single-use; run the dry run again for a fresh token")
		}
		return fmt.Errorf("consume confirmation token: %w", err)
	}
	if g.now().After(rec.ExpiresAt) {
		return shared.NewError(shared.ErrorInvalidConfirmToken, "confirmation token expired").
			WithSuggestion("run the dry run again for a fresh token")
	}
	if rec.SignatureHash != sig.Fingerprint() {
		g.logger.Warn("Confirmation token presented for a different action",
			zap.String("operation", sig.Operation))
		return shared.NewError(shared.ErrorInvalidConfirmToken, "confirmation token does not match this action").
			WithSuggestion("the previewed scope changed; run the dry run again")
	}
	return nil
}
