package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appforge/droid-builder/generator-api/internal/metrics"
	"github.com/appforge/droid-builder/generator-api/internal/models"
	"github.com/appforge/droid-builder/generator-api/internal/ws"
)

var (
	// ErrNotFound indicates the generation does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("generation not found")
	// ErrAlreadyTerminal indicates the generation has already finished.
	ErrAlreadyTerminal = errors.New("generation already in a terminal state")
)

// Options carries service-level settings that are not part of the pipeline.
type Options struct {
	// Backend names the configured genai backend, for metrics attribution.
	Backend string
	// ArchiveRoot is where finished archives and artifacts are stored.
	ArchiveRoot string
	// PipelineTimeout bounds one whole generation run.
	PipelineTimeout time.Duration
}

// Service owns generation records and drives the pipeline for each request.
type Service struct {
	pool     *pgxpool.Pool
	pipeline *Pipeline
	hub      *ws.Hub
	metrics  *metrics.GenerationMetrics
	opts     Options

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService creates a new orchestration service
func NewService(pool *pgxpool.Pool, pipeline *Pipeline, hub *ws.Hub, m *metrics.GenerationMetrics, opts Options) *Service {
	if opts.PipelineTimeout <= 0 {
		opts.PipelineTimeout = 15 * time.Minute
	}
	return &Service{
		pool:     pool,
		pipeline: pipeline,
		hub:      hub,
		metrics:  m,
		opts:     opts,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// EnsureSchema creates the tables this service needs if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS generations (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL,
			prompt TEXT NOT NULL,
			app_name TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			template_fallback BOOLEAN NOT NULL DEFAULT FALSE,
			archive_path TEXT NOT NULL DEFAULT '',
			artifact_state TEXT NOT NULL DEFAULT 'none',
			artifact_path TEXT NOT NULL DEFAULT '',
			build_output TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return fmt.Errorf("create generations table: %w", err)
	}
	return nil
}

// StartGeneration records a new generation and launches its pipeline on a
// background goroutine. The returned record is in the pending state.
func (s *Service) StartGeneration(ctx context.Context, userID uuid.UUID, prompt, appName string) (*models.Generation, error) {
	id := uuid.New()

	var gen models.Generation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO generations (id, user_id, prompt, app_name, status)
		 VALUES ($1, $2, $3, $4, 'pending')
		 RETURNING id, user_id, prompt, app_name, status, created_at, updated_at`,
		id, userID, prompt, appName,
	).Scan(&gen.ID, &gen.UserID, &gen.Prompt, &gen.AppName, &gen.Status, &gen.CreatedAt, &gen.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation: %w", err)
	}
	gen.ArtifactState = models.ArtifactNone

	if s.metrics != nil {
		s.metrics.RecordCreated(ctx, s.opts.Backend)
	}

	go s.run(id.String(), prompt, appName)

	return &gen, nil
}

// run drives one generation to a terminal state. It owns its own context:
// the request that started the generation has usually returned long before
// the pipeline finishes.
func (s *Service) run(id, prompt, appName string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.PipelineTimeout)
	defer cancel()

	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
	}()

	notify := func(stage models.GenerationStatus) {
		if err := s.transitionStatus(ctx, id, stage); err != nil {
			log.Printf(`{"level":"warn","message":"Status transition rejected","generation_id":"%s","stage":"%s","error":"%v"}`, id, stage, err)
			return
		}
		s.publishEvent(id, models.EventTypeStageStarted, stage, "")
	}

	result, err := s.pipeline.Execute(ctx, id, prompt, appName, s.opts.ArchiveRoot, notify)
	if err != nil {
		s.finishFailed(ctx, id, result, err)
		return
	}
	s.finishSucceeded(ctx, id, result)
}

// terminalPersistContext derives a context for writing a generation's final
// row. It carries the run's values but not its cancellation: the terminal
// update must land even when the run was cancelled or hit its deadline.
func terminalPersistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
}

func (s *Service) finishSucceeded(ctx context.Context, id string, result *PipelineResult) {
	persistCtx, cancel := terminalPersistContext(ctx)
	defer cancel()

	_, err := s.pool.Exec(persistCtx, `
		UPDATE generations
		SET status = 'succeeded', template_fallback = $2, archive_path = $3,
		    artifact_state = $4, artifact_path = $5, build_output = $6,
		    updated_at = NOW(), completed_at = NOW()
		WHERE id = $1
	`, id, result.TemplateFallback, result.ArchivePath, result.ArtifactState, result.ArtifactPath, result.BuildOutput)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to persist generation result","generation_id":"%s","error":"%v"}`, id, err)
	}

	if s.metrics != nil {
		s.metrics.RecordCompleted(persistCtx, s.opts.Backend, result.TemplateFallback)
	}

	message := "archive ready"
	if result.ArtifactState == models.ArtifactAbsent {
		message = "archive ready; build succeeded but produced no artifact at the expected path"
	} else if result.ArtifactState == models.ArtifactPresent {
		message = "archive and artifact ready"
	}
	s.publishTerminalEvent(id, models.EventTypeCompleted, models.StatusSucceeded, message)
	log.Printf(`{"level":"info","message":"Generation completed","generation_id":"%s","template_fallback":%t,"artifact_state":"%s"}`, id, result.TemplateFallback, result.ArtifactState)
}

func (s *Service) finishFailed(ctx context.Context, id string, result *PipelineResult, pipelineErr error) {
	status := models.StatusFailed
	eventType := models.EventTypeFailed
	if ctx.Err() == context.Canceled {
		status = models.StatusCancelled
		eventType = models.EventTypeCancelled
	}

	archivePath := ""
	buildOutput := ""
	if result != nil {
		// A build failure still leaves a usable archive behind.
		archivePath = result.ArchivePath
		buildOutput = result.BuildOutput
	}

	// Terminal updates bypass transitionStatus: failure/cancellation is
	// reachable from every non-terminal state.
	persistCtx, cancel := terminalPersistContext(ctx)
	defer cancel()

	_, err := s.pool.Exec(persistCtx, `
		UPDATE generations
		SET status = $2, error = $3, archive_path = $4, build_output = $5,
		    updated_at = NOW(), completed_at = NOW()
		WHERE id = $1 AND status NOT IN ('succeeded', 'failed', 'cancelled')
	`, id, status, pipelineErr.Error(), archivePath, buildOutput)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to persist generation failure","generation_id":"%s","error":"%v"}`, id, err)
	}

	if s.metrics != nil {
		s.metrics.RecordFailed(persistCtx, s.opts.Backend, string(FailedStage(pipelineErr)))
	}

	s.publishTerminalEvent(id, eventType, status, pipelineErr.Error())
	log.Printf(`{"level":"error","message":"Generation did not complete","generation_id":"%s","status":"%s","stage":"%s","error":"%v"}`, id, status, FailedStage(pipelineErr), pipelineErr)
}

// Cancel requests cancellation of an in-flight generation owned by userID.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	var status models.GenerationStatus
	err := s.pool.QueryRow(ctx,
		`SELECT status FROM generations WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("failed to look up generation: %w", err)
	}
	if status.Terminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyTerminal, status)
	}

	s.mu.Lock()
	cancel, ok := s.cancels[id.String()]
	s.mu.Unlock()
	if !ok {
		// The pipeline goroutine is gone (e.g. restart) but the row is
		// stuck non-terminal; mark it cancelled directly.
		_, err := s.pool.Exec(ctx, `
			UPDATE generations
			SET status = 'cancelled', updated_at = NOW(), completed_at = NOW()
			WHERE id = $1 AND status NOT IN ('succeeded', 'failed', 'cancelled')
		`, id)
		return err
	}
	cancel()
	return nil
}

// GetGeneration retrieves a generation owned by userID.
func (s *Service) GetGeneration(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Generation, error) {
	var gen models.Generation
	var completedAt *time.Time

	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, prompt, app_name, status, template_fallback,
		       archive_path, artifact_state, artifact_path, build_output,
		       error, created_at, updated_at, completed_at
		FROM generations
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(
		&gen.ID, &gen.UserID, &gen.Prompt, &gen.AppName, &gen.Status,
		&gen.TemplateFallback, &gen.ArchivePath, &gen.ArtifactState,
		&gen.ArtifactPath, &gen.BuildOutput, &gen.Error,
		&gen.CreatedAt, &gen.UpdatedAt, &completedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}
	gen.CompletedAt = completedAt
	return &gen, nil
}

// ListGenerations retrieves all generations for a user, newest first.
func (s *Service) ListGenerations(ctx context.Context, userID uuid.UUID) ([]*models.Generation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, prompt, app_name, status, template_fallback,
		       archive_path, artifact_state, artifact_path, error,
		       created_at, updated_at, completed_at
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var generations []*models.Generation
	for rows.Next() {
		var gen models.Generation
		var completedAt *time.Time
		err := rows.Scan(
			&gen.ID, &gen.UserID, &gen.Prompt, &gen.AppName, &gen.Status,
			&gen.TemplateFallback, &gen.ArchivePath, &gen.ArtifactState,
			&gen.ArtifactPath, &gen.Error, &gen.CreatedAt, &gen.UpdatedAt, &completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gen.CompletedAt = completedAt
		generations = append(generations, &gen)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generations: %w", err)
	}

	return generations, nil
}

// transitionStatus moves a generation to a new stage, validating the move
// under a row lock to keep concurrent writers from corrupting the lifecycle.
func (s *Service) transitionStatus(ctx context.Context, id string, newStatus models.GenerationStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentStatus models.GenerationStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM generations
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&currentStatus)
	if err != nil {
		return fmt.Errorf("generation not found or locked")
	}

	if err := validateTransition(currentStatus, newStatus); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE generations
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, newStatus)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	return tx.Commit(ctx)
}

// validateTransition validates if a status transition is allowed
func validateTransition(currentStatus, newStatus models.GenerationStatus) error {
	validTransitions := map[models.GenerationStatus][]models.GenerationStatus{
		models.StatusPending:       {models.StatusGenerating, models.StatusFailed, models.StatusCancelled},
		models.StatusGenerating:    {models.StatusMaterializing, models.StatusFailed, models.StatusCancelled},
		models.StatusMaterializing: {models.StatusArchiving, models.StatusFailed, models.StatusCancelled},
		models.StatusArchiving:     {models.StatusBuilding, models.StatusSucceeded, models.StatusFailed, models.StatusCancelled},
		models.StatusBuilding:      {models.StatusSucceeded, models.StatusFailed, models.StatusCancelled},
		models.StatusSucceeded:     {}, // Terminal state
		models.StatusFailed:        {}, // Terminal state
		models.StatusCancelled:     {}, // Terminal state
	}

	allowedNext, exists := validTransitions[currentStatus]
	if !exists {
		return fmt.Errorf("invalid current status: %s", currentStatus)
	}

	for _, allowed := range allowedNext {
		if allowed == newStatus {
			return nil
		}
	}

	return fmt.Errorf("invalid status transition from %s to %s", currentStatus, newStatus)
}

func (s *Service) publishEvent(id, eventType string, status models.GenerationStatus, message string) {
	if s.hub == nil {
		return
	}
	event := models.GenerationEvent{
		GenerationID: id,
		EventType:    eventType,
		Status:       status,
		Message:      message,
		Timestamp:    time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to marshal event","generation_id":"%s","error":"%v"}`, id, err)
		return
	}
	s.hub.Publish(id, payload)
}

// publishTerminalEvent publishes a final event and releases the replay
// history for the generation. Connected subscribers receive the event via
// Publish; clients connecting afterwards are served the terminal state from
// the database, so nothing needs the history once the run is over.
func (s *Service) publishTerminalEvent(id, eventType string, status models.GenerationStatus, message string) {
	s.publishEvent(id, eventType, status, message)
	if s.hub != nil {
		s.hub.Forget(id)
	}
}
