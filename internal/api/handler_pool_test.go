package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func setupValidationRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(nil, nil, nil, nil)
	r.POST("/api/requests", handler.PostRequest)
	r.POST("/api/returns", handler.PostReturn)
	r.GET("/api/assignments", handler.GetAssignments)
	r.GET("/api/utilization", handler.GetUtilization)
	r.GET("/api/vapid_public_key", handler.GetVAPIDPublicKey)
	return r
}

func TestPostRequestValidation(t *testing.T) {
	router := setupValidationRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/requests", strings.NewReader(`{"user_id":"alice"}`))
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostReturnValidation(t *testing.T) {
	router := setupValidationRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/returns", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetAssignmentsRequiresUserID(t *testing.T) {
	router := setupValidationRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/assignments", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetUtilizationRejectsBadDates(t *testing.T) {
	router := setupValidationRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/utilization?from=yesterday", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVAPIDPublicKeyUnconfigured(t *testing.T) {
	router := setupValidationRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/vapid_public_key", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
