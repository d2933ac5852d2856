package gateway

import (
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/appforge/droid-builder/generator-api/internal/auth"
	"github.com/appforge/droid-builder/generator-api/internal/models"
	"github.com/appforge/droid-builder/generator-api/internal/orchestration"
	"github.com/appforge/droid-builder/generator-api/internal/project"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	service    *orchestration.Service
	jwtManager *auth.JWTManager
	pool       *pgxpool.Pool
	// timestampArchives appends the creation time to download filenames.
	timestampArchives bool
}

// NewHandler creates a new gateway handler
func NewHandler(service *orchestration.Service, jwtManager *auth.JWTManager, pool *pgxpool.Pool, timestampArchives bool) *Handler {
	return &Handler{
		service:           service,
		jwtManager:        jwtManager,
		pool:              pool,
		timestampArchives: timestampArchives,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var userID string
	var hashedPassword string
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, hashed_password FROM users WHERE email = $1`,
		req.Email,
	).Scan(&userID, &hashedPassword)

	if err != nil {
		log.Printf(`{"level":"warn","message":"User not found","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid password","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := h.jwtManager.GenerateToken(
		c.Request.Context(),
		userID,
		req.Email,
		[]string{"user"},
		24*time.Hour,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		UserID: userID,
	})
}

// CreateGenerationRequest represents a generation request
type CreateGenerationRequest struct {
	Prompt  string `json:"prompt" binding:"required"`
	AppName string `json:"app_name"`
}

// CreateGeneration godoc
// @Summary Create generation
// @Description Start generating an Android project from a natural-language prompt
// @Tags generations
// @Accept json
// @Produce json
// @Param request body CreateGenerationRequest true "Generation request"
// @Success 202 {object} models.Generation
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /generations [post]
func (h *Handler) CreateGeneration(c *gin.Context) {
	var req CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid request: prompt is required",
			Code:  models.ErrCodeInvalidRequest,
		})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	appName := project.SanitizeAppName(req.AppName)
	gen, err := h.service.StartGeneration(c.Request.Context(), userID, req.Prompt, appName)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to start generation","error":"%v","user_id":"%s"}`, err, userID)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to start generation",
			Code:  models.ErrCodeInternalError,
		})
		return
	}

	c.JSON(http.StatusAccepted, gen)
}

// ListGenerations godoc
// @Summary List generations
// @Description List all generations owned by the authenticated user, newest first
// @Tags generations
// @Produce json
// @Success 200 {array} models.Generation
// @Security BearerAuth
// @Router /generations [get]
func (h *Handler) ListGenerations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	generations, err := h.service.ListGenerations(c.Request.Context(), userID)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to list generations","error":"%v","user_id":"%s"}`, err, userID)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to list generations",
			Code:  models.ErrCodeInternalError,
		})
		return
	}
	if generations == nil {
		generations = []*models.Generation{}
	}

	c.JSON(http.StatusOK, generations)
}

// GetGeneration godoc
// @Summary Get generation
// @Description Get the current state of one generation
// @Tags generations
// @Produce json
// @Param id path string true "Generation ID"
// @Success 200 {object} models.Generation
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /generations/{id} [get]
func (h *Handler) GetGeneration(c *gin.Context) {
	gen, ok := h.lookupGeneration(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gen)
}

// DownloadArchive godoc
// @Summary Download project archive
// @Description Download the generated project as a zip archive
// @Tags generations
// @Produce application/zip
// @Param id path string true "Generation ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /generations/{id}/archive [get]
func (h *Handler) DownloadArchive(c *gin.Context) {
	gen, ok := h.lookupGeneration(c)
	if !ok {
		return
	}

	// A failed build still leaves the archive downloadable; only runs that
	// never reached the archiving stage have nothing to serve.
	if gen.ArchivePath == "" {
		if gen.Status.Terminal() {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: "Generation produced no archive",
				Code:  models.ErrCodeNotFound,
			})
			return
		}
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error: "Archive not ready yet",
			Code:  models.ErrCodeArchiveNotReady,
			Details: map[string]string{
				"status": string(gen.Status),
			},
		})
		return
	}

	if _, err := os.Stat(gen.ArchivePath); err != nil {
		log.Printf(`{"level":"error","message":"Archive missing on disk","generation_id":"%s","path":"%s"}`, gen.ID, gen.ArchivePath)
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Archive no longer available",
			Code:  models.ErrCodeNotFound,
		})
		return
	}

	name := project.ArchiveName(project.SanitizeAppName(gen.AppName), gen.CreatedAt, h.timestampArchives)
	c.FileAttachment(gen.ArchivePath, name)
}

// DownloadArtifact godoc
// @Summary Download built APK
// @Description Download the APK produced by the build stage
// @Tags generations
// @Produce application/vnd.android.package-archive
// @Param id path string true "Generation ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /generations/{id}/artifact [get]
func (h *Handler) DownloadArtifact(c *gin.Context) {
	gen, ok := h.lookupGeneration(c)
	if !ok {
		return
	}

	switch {
	case gen.ArtifactState == models.ArtifactPresent:
		// Serve below.
	case gen.Status == models.StatusFailed && gen.BuildOutput != "":
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error: "Build failed; no artifact was produced",
			Code:  models.ErrCodeBuildFailed,
			Details: map[string]string{
				"error": gen.Error,
			},
		})
		return
	case gen.Status.Terminal():
		// Succeeded without an artifact, or failed before the build stage.
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "No artifact available for this generation",
			Code:  models.ErrCodeArtifactMissing,
		})
		return
	default:
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error: "Generation still in progress",
			Code:  models.ErrCodeArchiveNotReady,
			Details: map[string]string{
				"status": string(gen.Status),
			},
		})
		return
	}

	if _, err := os.Stat(gen.ArtifactPath); err != nil {
		log.Printf(`{"level":"error","message":"Artifact missing on disk","generation_id":"%s","path":"%s"}`, gen.ID, gen.ArtifactPath)
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Artifact no longer available",
			Code:  models.ErrCodeArtifactMissing,
		})
		return
	}

	name := project.SanitizeAppName(gen.AppName) + ".apk"
	c.FileAttachment(gen.ArtifactPath, name)
}

// CancelGeneration godoc
// @Summary Cancel generation
// @Description Request cancellation of an in-flight generation
// @Tags generations
// @Produce json
// @Param id path string true "Generation ID"
// @Success 202 {object} map[string]string
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /generations/{id} [delete]
func (h *Handler) CancelGeneration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid generation ID",
			Code:  models.ErrCodeInvalidRequest,
		})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	err = h.service.Cancel(c.Request.Context(), id, userID)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
	case errors.Is(err, orchestration.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Generation not found",
			Code:  models.ErrCodeNotFound,
		})
	case errors.Is(err, orchestration.ErrAlreadyTerminal):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error: "Generation already finished",
			Code:  models.ErrCodeAlreadyTerminal,
		})
	default:
		log.Printf(`{"level":"error","message":"Failed to cancel generation","error":"%v","generation_id":"%s"}`, err, id)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to cancel generation",
			Code:  models.ErrCodeInternalError,
		})
	}
}

// lookupGeneration parses the path ID and fetches the generation scoped to
// the authenticated user, writing the error response itself on failure.
func (h *Handler) lookupGeneration(c *gin.Context) (*models.Generation, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid generation ID",
			Code:  models.ErrCodeInvalidRequest,
		})
		return nil, false
	}

	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}

	gen, err := h.service.GetGeneration(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, orchestration.ErrNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: "Generation not found",
				Code:  models.ErrCodeNotFound,
			})
			return nil, false
		}
		log.Printf(`{"level":"error","message":"Failed to get generation","error":"%v","generation_id":"%s"}`, err, id)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to get generation",
			Code:  models.ErrCodeInternalError,
		})
		return nil, false
	}
	return gen, true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "User not authenticated",
			Code:  models.ErrCodeUnauthorized,
		})
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDVal.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "Invalid user ID",
			Code:  models.ErrCodeUnauthorized,
		})
		return uuid.Nil, false
	}
	return userID, true
}
