package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/merlox/ethereum-store/crypto"
)

const testSecret = "gateway-test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func callerEcho(t *testing.T, want [20]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := Caller(r.Context())
		require.True(t, ok)
		require.Equal(t, want, got)
		w.WriteHeader(http.StatusOK)
	})
}

func testCaller() [20]byte {
	var addr [20]byte
	addr[0] = 0x42
	addr[19] = 0x24
	return addr
}

func TestAuthenticatorResolvesSubject(t *testing.T) {
	caller := testCaller()
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "marketd", Audience: "market"}, nil)
	handler := auth.Middleware(callerEcho(t, caller))

	token := signToken(t, jwt.MapClaims{
		"sub": crypto.FormatAddress(caller),
		"iss": "marketd",
		"aud": "market",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestAuthenticatorRejects(t *testing.T) {
	caller := testCaller()
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "marketd", Audience: "market"}, nil)
	handler := auth.Middleware(okHandler())

	cases := map[string]string{
		"missing": "",
		"issuer": "Bearer " + signToken(t, jwt.MapClaims{
			"sub": crypto.FormatAddress(caller), "iss": "other", "aud": "market",
		}),
		"expired": "Bearer " + signToken(t, jwt.MapClaims{
			"sub": crypto.FormatAddress(caller), "iss": "marketd", "aud": "market",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"subject": "Bearer " + signToken(t, jwt.MapClaims{
			"sub": "not-an-address", "iss": "marketd", "aud": "market",
		}),
		"signature": "Bearer " + func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": crypto.FormatAddress(caller)})
			signed, err := token.SignedString([]byte("other-secret"))
			require.NoError(t, err)
			return signed
		}(),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/orders/0/sent", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			require.Equal(t, http.StatusUnauthorized, res.Code)
		})
	}
}

func TestAuthenticatorDisabledUsesHeader(t *testing.T) {
	caller := testCaller()
	auth := NewAuthenticator(AuthConfig{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/products", nil)
	req.Header.Set(CallerHeader, crypto.FormatAddress(caller))
	res := httptest.NewRecorder()
	auth.Middleware(callerEcho(t, caller)).ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/products", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequestIDs(t *testing.T) {
	var seen string
	handler := RequestIDs(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, res.Header().Get(RequestIDHeader))

	inbound := "0b9d1f4e-3c1a-4a0e-9f43-7d0c6d3b2a11"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, inbound, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotEqual(t, "not a uuid", seen)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://shop.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/products", nil)
	req.Header.Set("Origin", "https://shop.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "https://shop.example", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/products", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}
