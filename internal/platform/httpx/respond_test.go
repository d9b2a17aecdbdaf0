package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.NotFound("product", 7), http.StatusNotFound},
		{shared.Invalid("company name is required"), http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: client code already exists", shared.ErrDuplicateKey), http.StatusConflict},
		{fmt.Errorf("%w: quotation cannot move from Draft to Accepted", shared.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("%w: gave up", shared.ErrContention), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestRespondErrorContentionSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("%w: gave up", shared.ErrContention))
	require.Equal(t, RetryAfterSeconds, rec.Header().Get("Retry-After"))
}

func TestRespondErrorValidationFields(t *testing.T) {
	errs := shared.ValidationErrors{}
	errs.Add("company_name", "is required")
	rec := httptest.NewRecorder()
	RespondError(rec, errs)

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, http.StatusUnprocessableEntity, body.Status)
	require.Equal(t, "is required", body.Errors["company_name"])
}

func TestRespondErrorInternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: password leaked"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Detail)
	require.Contains(t, body.Instance, "urn:uuid:")
}
