package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testErrorContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder, *logrus.Logger) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/anything", nil)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return c, rec, logger
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondError_Envelope(t *testing.T) {
	c, rec, logger := testErrorContext(t)

	cause := errors.New("pq: duplicate key value")
	respondError(c, logger, apperror.Wrap(apperror.Conflict, "flat already has a tenant", cause))

	assert.Equal(t, http.StatusConflict, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "conflict", body["status"])
	assert.Equal(t, "flat already has a tenant", body["message"])
	// outside production the cause chain rides along for debugging
	assert.Contains(t, body["stack"], "duplicate key")
}

func TestRespondError_InternalHidesCause(t *testing.T) {
	c, rec, logger := testErrorContext(t)

	respondError(c, logger, errors.New("dial tcp 10.0.0.4:5432: connect: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "internal_error", body["status"])
	assert.Equal(t, "Something went wrong. Please try again.", body["message"])
}

func TestRespondBadRequest_Envelope(t *testing.T) {
	c, rec, _ := testErrorContext(t)

	respondBadRequest(c, "Invalid flatID in URL")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "validation_error", body["status"])
	assert.Equal(t, "Invalid flatID in URL", body["message"])
}
