package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testLogger() ectologger.Logger {
	return zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
}

func newBearerTestServer(token string) (*echo.Echo, *int) {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())

	handlerCalls := 0
	g := e.Group("/api/v1", Bearer(token))
	g.POST("/batch/matching/batch", func(c echo.Context) error {
		handlerCalls++
		return c.JSON(http.StatusAccepted, map[string]bool{"accepted": true})
	})

	return e, &handlerCalls
}

func TestBearer(t *testing.T) {
	const token = "secret-token"

	t.Run("missing header is rejected without reaching the handler", func(t *testing.T) {
		e, calls := newBearerTestServer(token)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/batch/matching/batch", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, *calls)
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		e, calls := newBearerTestServer(token)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/batch/matching/batch", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer wrong-token")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, *calls)
	})

	t.Run("malformed scheme is rejected", func(t *testing.T) {
		e, calls := newBearerTestServer(token)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/batch/matching/batch", nil)
		req.Header.Set(echo.HeaderAuthorization, "Basic "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, *calls)
	})

	t.Run("valid token passes through", func(t *testing.T) {
		e, calls := newBearerTestServer(token)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/batch/matching/batch", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, 1, *calls)
	})
}
