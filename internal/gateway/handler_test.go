package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/droid-builder/generator-api/internal/models"
)

func newTestRouter(h *Handler, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Next()
		})
	}
	router.POST("/api/generations", h.CreateGeneration)
	router.GET("/api/generations/:id", h.GetGeneration)
	router.DELETE("/api/generations/:id", h.CancelGeneration)
	return router
}

func TestCreateGeneration_Validation(t *testing.T) {
	h := NewHandler(nil, nil, nil, false)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing_prompt",
			body:       map[string]string{"app_name": "Demo"},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.ErrCodeInvalidRequest,
		},
		{
			name:       "empty_body",
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
			wantCode:   models.ErrCodeInvalidRequest,
		},
	}

	router := newTestRouter(h, "8a9a1db2-10c4-4e2d-9d7e-3a1a0b7a5f10")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.body)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/generations", bytes.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestCreateGeneration_RequiresAuthenticatedUser(t *testing.T) {
	h := NewHandler(nil, nil, nil, false)
	router := newTestRouter(h, "")

	payload, _ := json.Marshal(map[string]string{"prompt": "an app"})
	req := httptest.NewRequest(http.MethodPost, "/api/generations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerationID_Validation(t *testing.T) {
	h := NewHandler(nil, nil, nil, false)
	router := newTestRouter(h, "8a9a1db2-10c4-4e2d-9d7e-3a1a0b7a5f10")

	t.Run("get_rejects_malformed_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/generations/not-a-uuid", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cancel_rejects_malformed_id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/generations/42", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
