// Package identity establishes the single caller identity the session runs
// under. Bootstrap happens exactly once per process: a pre-issued session
// token is restored if one is configured, otherwise an anonymous identity is
// created. Failure is terminal for the session.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dmelim/folio/internal/model"
)

var identityLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	identityLogger = l
}

type Provider interface {
	// RestoreSession resolves a pre-issued session token to an identity.
	RestoreSession(ctx context.Context, token string) (model.Identity, error)

	// CreateAnonymous mints a fresh anonymous identity.
	CreateAnonymous(ctx context.Context) (model.Identity, error)
}

// AuthError marks a failed identity bootstrap. It is fatal for the session:
// no subscription opens and no mutation is accepted.
type AuthError struct {
	Stage string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Bootstrap resolves the session identity once and publishes it to
// dependents. Until Run succeeds the session is not ready.
type Bootstrap struct {
	provider Provider
	token    string

	once  sync.Once
	ready chan struct{}

	mu        sync.Mutex
	id        model.Identity
	err       error
	callbacks []func(model.Identity)
}

func NewBootstrap(provider Provider, token string) *Bootstrap {
	return &Bootstrap{
		provider: provider,
		token:    token,
		ready:    make(chan struct{}),
	}
}

// Run performs the bootstrap. Repeat calls return the first outcome.
func (b *Bootstrap) Run(ctx context.Context) (model.Identity, error) {
	b.once.Do(func() {
		id, err := b.resolve(ctx)

		b.mu.Lock()
		b.id, b.err = id, err
		callbacks := b.callbacks
		b.callbacks = nil
		b.mu.Unlock()

		if err == nil {
			identityLogger.Info().Str("identity", string(id)).Msg("Identity established")
			close(b.ready)
			for _, cb := range callbacks {
				cb(id)
			}
		} else {
			identityLogger.Error().Err(err).Msg("Identity bootstrap failed")
		}
	})

	return b.Identity()
}

func (b *Bootstrap) resolve(ctx context.Context) (model.Identity, error) {
	if b.token != "" {
		id, err := b.provider.RestoreSession(ctx, b.token)
		if err != nil {
			return "", &AuthError{Stage: "restore", Err: err}
		}
		return id, nil
	}

	id, err := b.provider.CreateAnonymous(ctx)
	if err != nil {
		return "", &AuthError{Stage: "anonymous", Err: err}
	}
	return id, nil
}

// OnIdentity registers a callback that fires once the identity resolves. If
// it already has, the callback fires immediately.
func (b *Bootstrap) OnIdentity(cb func(model.Identity)) {
	b.mu.Lock()
	if b.err == nil && b.id != "" {
		id := b.id
		b.mu.Unlock()
		cb(id)
		return
	}
	b.callbacks = append(b.callbacks, cb)
	b.mu.Unlock()
}

// Ready is closed once the identity has been established.
func (b *Bootstrap) Ready() <-chan struct{} {
	return b.ready
}

// Identity returns the resolved identity, or the bootstrap error.
func (b *Bootstrap) Identity() (model.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	return b.id, nil
}
