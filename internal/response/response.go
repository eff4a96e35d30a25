package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/eksporyuk/affiliate-ledger/internal/apperror"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/eksporyuk/affiliate-ledger/pkg/types"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, types.Response{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, types.Response{Success: true, Data: data})
}

func List(w http.ResponseWriter, data any, p *types.Pagination) {
	JSON(w, http.StatusOK, types.Response{Success: true, Data: data, Pagination: p})
}

func Error(w http.ResponseWriter, _ *http.Request, err error) {
	JSON(w, apperror.HTTPStatus(err), types.Response{
		Success: false,
		Error:   apperror.PublicMessage(err),
		Code:    apperror.CodeOf(err),
	})
}

// Decode reads a JSON body into dst and validates it.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperror.Validation("invalid request payload")
	}
	return Validate(dst)
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return apperror.Validation("validation error: " + strings.Join(msgs, "; "))
		}
		return apperror.Validation("validation error")
	}
	return nil
}

// ListFilter reads page, limit, status and q from the query string.
func ListFilter(r *http.Request) model.ListFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return model.ListFilter{
		Page:   page,
		Limit:  limit,
		Status: strings.ToUpper(q.Get("status")),
		Search: q.Get("q"),
	}
}
