package apperror

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSentinelMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("request payout: %w", ErrInsufficientBalance.WithMessage("only Rp 500.000 available"))

	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NotErrorIs(t, err, ErrBelowMinimumPayout)
	assert.Equal(t, KindStateConflict, KindOf(err))
	assert.Equal(t, "insufficient_balance", CodeOf(err))
	assert.Equal(t, "only Rp 500.000 available", PublicMessage(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := ErrPaymentProvider.Wrap(cause)

	assert.ErrorIs(t, err, ErrPaymentProvider)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrCouponExpired, http.StatusBadRequest},
		{ErrCouponNotFound, http.StatusNotFound},
		{ErrInvalidStateTransition, http.StatusConflict},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestInternalErrorsHideDetails(t *testing.T) {
	err := Internal(errors.New("pq: relation does not exist"))

	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Equal(t, KindInternal, KindOf(err))
}
