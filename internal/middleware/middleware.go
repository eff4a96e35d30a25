package middleware

import (
	"github.com/eksporyuk/affiliate-ledger/internal/server"
)

type Middlewares struct {
	Global          *Global
	ContextEnhancer *ContextEnhancer
	Tracing         *Tracing
	Auth            *Auth
	RateLimit       *RateLimiter
}

func NewMiddlewares(s *server.Server) *Middlewares {
	return &Middlewares{
		Global:          NewGlobal(s),
		ContextEnhancer: NewContextEnhancer(s),
		Tracing:         NewTracing(s.LoggerService.GetApplication()),
		Auth:            NewAuth(s.Config.Auth.JWTSecret, s.Config.Auth.JWTIssuer),
		RateLimit:       NewRateLimiter(s.Redis),
	}
}
