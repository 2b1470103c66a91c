package transport

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/korubo/kybdash/internal/config"
)

const testKid = "test-key-1"

func newJWKSServer(t *testing.T, pub *rsa.PublicKey) *httptest.Server {
	t.Helper()
	n := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	body := fmt.Sprintf(`{"keys":[{"kty":"RSA","kid":%q,"use":"sig","n":%q,"e":%q}]}`,
		testKid, n, e)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authTestSetup(t *testing.T) (*rsa.PrivateKey, config.IdentityConfig, *JWKSClient) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	srv := newJWKSServer(t, &key.PublicKey)
	t.Cleanup(srv.Close)

	cfg := config.IdentityConfig{
		Issuer:       "https://id.example.com",
		Audience:     "kybdash",
		JWKSURL:      srv.URL,
		JWKSCacheTTL: time.Hour,
		Algorithms:   []string{"RS256"},
	}
	return key, cfg, NewJWKSClient(cfg, zap.NewNop())
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "analyst-1",
		"iss": "https://id.example.com",
		"aud": "kybdash",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func runAuth(t *testing.T, cfg config.IdentityConfig, jwks *JWKSClient, authHeader string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var seen map[string]any
	handler := JWTAuthenticator(cfg, jwks)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClaimsFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/ui/dashboard", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestJWTAuthenticator_valid_token(t *testing.T) {
	key, cfg, jwks := authTestSetup(t)
	token := signToken(t, key, validClaims())

	rec, claims := runAuth(t, cfg, jwks, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if claims["sub"] != "analyst-1" {
		t.Errorf("sub claim = %v, want analyst-1", claims["sub"])
	}
}

func TestJWTAuthenticator_rejections(t *testing.T) {
	key, cfg, jwks := authTestSetup(t)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "https://evil.example.com"

	wrongAudience := validClaims()
	wrongAudience["aud"] = "other-app"

	noSubject := validClaims()
	delete(noSubject, "sub")

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired", "Bearer " + signToken(t, key, expired)},
		{"wrong issuer", "Bearer " + signToken(t, key, wrongIssuer)},
		{"wrong audience", "Bearer " + signToken(t, key, wrongAudience)},
		{"no subject", "Bearer " + signToken(t, key, noSubject)},
		{"wrong signing key", "Bearer " + signToken(t, otherKey, validClaims())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := runAuth(t, cfg, jwks, tt.header)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestJWKSClient_unknown_kid(t *testing.T) {
	_, _, jwks := authTestSetup(t)

	if _, err := jwks.SigningKey("no-such-key"); err == nil {
		t.Fatal("SigningKey with unknown kid should return error")
	}
}
