package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/casework-api/pkg/errors"
	"github.com/noah-isme/casework-api/pkg/middleware/requestid"
)

func serve(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", handler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestOKWrapsData(t *testing.T) {
	rec := serve(func(c *gin.Context) { OK(c, map[string]string{"id": "case-1"}) })

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":{"id":"case-1"}}`, rec.Body.String())
}

func TestErrorHidesCauseAndEchoesRequestID(t *testing.T) {
	rec := serve(func(c *gin.Context) {
		Error(c, appErrors.Storage(assert.AnError, "failed to update case"))
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, appErrors.ErrStorage.Code, body.Error.Code)
	assert.Equal(t, "req-1", body.Meta["request_id"])
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}
