package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larpkeep/characterhub/pkg/authz"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestWriteDomainErrorTranslatesCodedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"access denied", authz.Denied(""), http.StatusForbidden, authz.CodeAccessDenied},
		{"request error", authz.BadRequest("bad type"), http.StatusBadRequest, authz.CodeRequestError},
		{"wrapped coded error", fmt.Errorf("checking: %w", authz.Denied("")), http.StatusForbidden, authz.CodeAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantStatus, body.Status)
		})
	}
}

func TestWriteDomainErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.NotContains(t, body.Message, "pq:")
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteSuccess(rec, map[string]int{"count": 3}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())
}

func TestQueryFilter(t *testing.T) {
	t.Run("filter parameter", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/characters?filter=%7B%22limit%22%3A5%7D", nil)
		raw, ok := QueryFilter(r)
		require.True(t, ok)
		assert.JSONEq(t, `{"limit":5}`, string(raw))
	})

	t.Run("bare where gets wrapped", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/characters?where=%7B%22type%22%3A%22PC%22%7D", nil)
		raw, ok := QueryFilter(r)
		require.True(t, ok)
		assert.JSONEq(t, `{"where":{"type":"PC"}}`, string(raw))
	})

	t.Run("absent", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/characters", nil)
		raw, ok := QueryFilter(r)
		assert.False(t, ok)
		assert.Nil(t, raw)
	})
}
