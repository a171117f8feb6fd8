package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"schoolshelf/internal/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := HashPIN("2468")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "argon2id$"))

	v, err := NewVerifier(encoded)
	require.NoError(t, err)
	assert.True(t, v.Verify("2468"))
	assert.False(t, v.Verify("2469"))
	assert.False(t, v.Verify(""))

	again, err := HashPIN("2468")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "every hash gets a fresh salt")
}

func TestNewVerifierRejectsMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain-pin",
		"bcrypt$abc$def",
		"argon2id$not base64$def",
		"argon2id$$",
	} {
		_, err := NewVerifier(encoded)
		assert.ErrorIs(t, err, ErrInvalidHash, encoded)
	}

	_, err := NewVerifierFromPIN("")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func newGuarded(t *testing.T, burst int) http.Handler {
	t.Helper()
	v, err := NewVerifierFromPIN("1234")
	require.NoError(t, err)
	respond := web.NewResponder(nil,
		web.Rule{Err: ErrUnauthorized, Status: http.StatusUnauthorized},
		web.Rule{Err: ErrRateLimited, Status: http.StatusTooManyRequests},
	)
	guard := NewGuard(v, respond, nil, time.Hour, burst)
	return guard.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func request(h http.Handler, pin, addr string) int {
	req := httptest.NewRequest(http.MethodGet, "/admin/books", nil)
	req.RemoteAddr = addr
	if pin != "" {
		req.Header.Set(HeaderPIN, pin)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAdmin(t *testing.T) {
	h := newGuarded(t, 10)

	assert.Equal(t, http.StatusNoContent, request(h, "1234", "10.0.0.1:5000"))
	assert.Equal(t, http.StatusUnauthorized, request(h, "0000", "10.0.0.1:5000"))
	assert.Equal(t, http.StatusUnauthorized, request(h, "", "10.0.0.1:5000"))
}

func TestRequireAdminRateLimitsPerClient(t *testing.T) {
	h := newGuarded(t, 2)

	assert.Equal(t, http.StatusUnauthorized, request(h, "0000", "10.0.0.1:5000"))
	assert.Equal(t, http.StatusUnauthorized, request(h, "0000", "10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, request(h, "1234", "10.0.0.1:5002"),
		"the budget is spent even for a correct PIN")

	assert.Equal(t, http.StatusNoContent, request(h, "1234", "10.0.0.2:5000"),
		"other clients keep their own budget")
}
