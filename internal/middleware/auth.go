package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/response"
	"github.com/eksporyuk/affiliate-ledger/pkg/constants"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
)

// Claims is the session token minted by the web app.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type Auth struct {
	secret []byte
	issuer string
}

func NewAuth(secret, issuer string) *Auth {
	return &Auth{secret: []byte(secret), issuer: issuer}
}

// Parse verifies an HS256 token and returns the identity it carries.
func (a *Auth) Parse(token string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, apperror.ErrUnauthorized.Wrap(err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, apperror.ErrUnauthorized.WithMessage("invalid subject claim")
	}

	role := constants.Role(strings.ToUpper(claims.Role))
	if role == "" {
		role = constants.RoleMember
	}
	return Identity{UserID: userID, Email: claims.Email, Role: role}, nil
}

// Authenticate requires a valid bearer token.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Error(w, r, apperror.ErrUnauthorized)
			return
		}

		id, err := a.Parse(token)
		if err != nil {
			GetLogger(r.Context()).Warn().Err(err).Msg("rejected session token")
			response.Error(w, r, err)
			return
		}

		ctx := WithIdentity(r.Context(), id)
		l := GetLogger(ctx).With().Str("user_id", id.UserID.String()).Logger()
		ctx = WithLogger(ctx, &l)
		if txn := newrelic.FromContext(ctx); txn != nil {
			txn.AddAttribute("user.id", id.UserID.String())
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			response.Error(w, r, apperror.ErrUnauthorized)
			return
		}
		if !id.IsAdmin() {
			response.Error(w, r, apperror.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CronSecret guards endpoints called by an external scheduler.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(constants.HeaderCronSecret)
			if got == "" {
				got, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				response.Error(w, r, apperror.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
