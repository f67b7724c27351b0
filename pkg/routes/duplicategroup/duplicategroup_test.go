package duplicategroup

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/grouping"
	"github.com/Ramsey-B/clover/pkg/middleware"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

// newValidationTestServer wires a handler whose service is never reached:
// every request in these tests fails validation first.
func newValidationTestServer() *echo.Echo {
	log := testLogger()
	svc := grouping.NewService(log, nil, nil, events.NewEmitter(nil, log), grouping.DefaultConfig())

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(log)
	NewHandler(svc, log).RegisterRoutes(e.Group("/api/v1/duplicate-groups"))
	return e
}

func TestUpdate_Validation(t *testing.T) {
	t.Run("empty body is rejected", func(t *testing.T) {
		e := newValidationTestServer()

		req := httptest.NewRequest(http.MethodPatch, "/api/v1/duplicate-groups/g1", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown review status is rejected", func(t *testing.T) {
		e := newValidationTestServer()

		req := httptest.NewRequest(http.MethodPatch, "/api/v1/duplicate-groups/g1", strings.NewReader(`{"review_status":"approved"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-uuid canonical project id is rejected", func(t *testing.T) {
		e := newValidationTestServer()

		req := httptest.NewRequest(http.MethodPatch, "/api/v1/duplicate-groups/g1", strings.NewReader(`{"canonical_project_id":"not-a-uuid"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRegroup_Validation(t *testing.T) {
	e := newValidationTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/duplicate-groups/regroup", strings.NewReader(`{"project_year":1900}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestList_Validation(t *testing.T) {
	e := newValidationTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/duplicate-groups?status=bogus", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
