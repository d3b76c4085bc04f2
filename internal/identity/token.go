package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmelim/folio/internal/model"
)

// TokenProvider restores sessions from an Ed25519-signed owner token. The
// token has the form "<identity-b64>.<signature-b64>", where the signature
// covers the raw identity bytes. Tokens are produced by cmd/sign-token.
type TokenProvider struct {
	publicKey ed25519.PublicKey
}

func NewTokenProvider(publicKeyPEM string) (*TokenProvider, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing the public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	publicKey, ok := pub.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("key is not an Ed25519 public key")
	}

	return &TokenProvider{publicKey: publicKey}, nil
}

func (p *TokenProvider) RestoreSession(ctx context.Context, token string) (model.Identity, error) {
	payload, sig, err := decodeToken(token)
	if err != nil {
		return "", err
	}

	if !ed25519.Verify(p.publicKey, payload, sig) {
		return "", errors.New("invalid token signature")
	}

	return model.Identity(payload), nil
}

func (p *TokenProvider) CreateAnonymous(ctx context.Context) (model.Identity, error) {
	return model.Identity("anon-" + uuid.New().String()), nil
}

func decodeToken(token string) (payload, sig []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(token), ".", 2)
	if len(parts) != 2 {
		return nil, nil, errors.New("malformed session token")
	}

	payload, err = base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode token payload: %w", err)
	}

	sig, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode token signature: %w", err)
	}

	return payload, sig, nil
}

// SignToken builds a session token for an identity with the matching private
// key. Used by cmd/sign-token and tests.
func SignToken(priv ed25519.PrivateKey, id model.Identity) string {
	payload := []byte(id)
	sig := ed25519.Sign(priv, payload)
	return base64.StdEncoding.EncodeToString(payload) + "." + base64.StdEncoding.EncodeToString(sig)
}
