package identity

import (
	"context"
	"fmt"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkjwt "github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/google/uuid"

	"github.com/dmelim/folio/internal/model"
)

// ClerkProvider restores sessions by verifying a Clerk session JWT. Clerk has
// no anonymous sign-in, so anonymous identities are minted locally; they are
// opaque tokens either way.
type ClerkProvider struct{}

func NewClerkProvider(secretKey string) *ClerkProvider {
	clerk.SetKey(secretKey)
	return &ClerkProvider{}
}

func (p *ClerkProvider) RestoreSession(ctx context.Context, token string) (model.Identity, error) {
	claims, err := clerkjwt.Verify(ctx, &clerkjwt.VerifyParams{Token: token})
	if err != nil {
		return "", fmt.Errorf("failed to verify session token: %w", err)
	}
	return model.Identity(claims.RegisteredClaims.Subject), nil
}

func (p *ClerkProvider) CreateAnonymous(ctx context.Context) (model.Identity, error) {
	return model.Identity("anon-" + uuid.New().String()), nil
}
