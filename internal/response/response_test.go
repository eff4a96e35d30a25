package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, nil, apperror.ErrInsufficientBalance)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body types.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "insufficient_balance", body.Code)
}

func TestDecodeValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0}`))
	var dst types.PayoutRequest

	err := Decode(req, &dst)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "Amount")
}

func TestListFilterClampsLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=0&limit=500&status=pending", nil)
	f := ListFilter(req)

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, maxPageSize, f.Limit)
	assert.Equal(t, "PENDING", f.Status)
}
