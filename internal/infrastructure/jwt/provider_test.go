package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edu-notify-api/internal/config"
	"github.com/edu-notify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeKeys generates an RSA key pair into dir and returns a config pointing at it.
func writeKeys(t *testing.T, dir string, withPrivate bool) *config.Config {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))

	privPath := filepath.Join(dir, "private.pem")
	if withPrivate {
		privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))
	}
	return &config.Config{JWTPublicKeyPath: pubPath, JWTPrivateKeyPath: privPath, JWTExpiry: time.Hour}
}

func TestProvider_SignVerify_RoundTrip(t *testing.T) {
	p, err := NewProvider(writeKeys(t, t.TempDir(), true))
	require.NoError(t, err)

	tok, err := p.Sign("u1", []string{"learner", "lecturer"})
	require.NoError(t, err)

	claims, err := p.Verify(tok)
	require.NoError(t, err)
	id := claims.Identity()
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, []domain.Role{domain.RoleLearner, domain.RoleLecturer}, id.Roles)
}

func TestProvider_VerifyOnly_WithoutPrivateKey(t *testing.T) {
	p, err := NewProvider(writeKeys(t, t.TempDir(), false))
	require.NoError(t, err)

	_, err = p.Sign("u1", nil)
	assert.Error(t, err)
}

func TestProvider_Verify_RejectsForeignKey(t *testing.T) {
	signer, err := NewProvider(writeKeys(t, t.TempDir(), true))
	require.NoError(t, err)
	verifier, err := NewProvider(writeKeys(t, t.TempDir(), false))
	require.NoError(t, err)

	tok, err := signer.Sign("u1", []string{"admin"})
	require.NoError(t, err)
	_, err = verifier.Verify(tok)
	assert.Error(t, err)
}

func TestProvider_Verify_Garbage(t *testing.T) {
	p, err := NewProvider(writeKeys(t, t.TempDir(), false))
	require.NoError(t, err)
	_, err = p.Verify("not-a-jwt")
	assert.Error(t, err)
}

func TestNewProvider_MissingPublicKey(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPublicKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.Error(t, err)
}
