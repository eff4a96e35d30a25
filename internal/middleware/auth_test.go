package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, sub, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Email: "affiliate@example.com",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParseValidToken(t *testing.T) {
	userID := uuid.New()
	auth := NewAuth(testSecret, "")

	id, err := auth.Parse(signToken(t, testSecret, userID.String(), "admin", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, constants.RoleAdmin, id.Role)
	assert.True(t, id.IsAdmin())
}

func TestParseRejectsBadTokens(t *testing.T) {
	auth := NewAuth(testSecret, "")
	userID := uuid.NewString()

	cases := map[string]string{
		"wrong secret": signToken(t, "other", userID, "MEMBER", time.Now().Add(time.Hour)),
		"expired":      signToken(t, testSecret, userID, "MEMBER", time.Now().Add(-time.Hour)),
		"bad subject":  signToken(t, testSecret, "not-a-uuid", "MEMBER", time.Now().Add(time.Hour)),
		"not a jwt":    "garbage",
	}
	for name, token := range cases {
		_, err := auth.Parse(token)
		assert.Error(t, err, name)
	}
}

func TestAuthenticateAndRequireAdmin(t *testing.T) {
	auth := NewAuth(testSecret, "")
	var seen Identity
	h := auth.Authenticate(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/payouts", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusForbidden, do(signToken(t, testSecret, uuid.NewString(), "MEMBER", time.Now().Add(time.Hour))))

	adminID := uuid.New()
	assert.Equal(t, http.StatusNoContent, do(signToken(t, testSecret, adminID.String(), "ADMIN", time.Now().Add(time.Hour))))
	assert.Equal(t, adminID, seen.UserID)
}

func TestCronSecret(t *testing.T) {
	h := CronSecret("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/cron/reminders", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set(constants.HeaderCronSecret, "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
