package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/appforge/droid-builder/generator-api/internal/models"
	"github.com/appforge/droid-builder/generator-api/internal/ws"
)

var streamTracer = otel.Tracer("generation-stream")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking for production
		return true
	},
}

// Stream serves WebSocket connections that follow a generation's progress.
type Stream struct {
	pool   *pgxpool.Pool
	hub    *ws.Hub
	tracer trace.Tracer
}

// NewStream creates a new generation stream handler
func NewStream(pool *pgxpool.Pool, hub *ws.Hub) *Stream {
	return &Stream{
		pool:   pool,
		hub:    hub,
		tracer: streamTracer,
	}
}

// wsSubscriber adapts a websocket connection to the hub's Subscriber
// interface. Events are buffered so a slow client cannot block publishers.
// Send and Close may race, so the closed flag is checked under the same
// mutex that guards the channel close.
type wsSubscriber struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func newWSSubscriber() *wsSubscriber {
	return &wsSubscriber{ch: make(chan []byte, 64)}
}

func (s *wsSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("subscriber closed")
	}
	select {
	case s.ch <- payload:
		return nil
	default:
		return fmt.Errorf("subscriber buffer full")
	}
}

func (s *wsSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// StreamGeneration handles WebSocket /api/ws/generations/:id
// @Summary Stream generation progress
// @Description WebSocket endpoint to stream real-time pipeline stage events
// @Tags generations
// @Param id path string true "Generation ID"
// @Param Authorization header string true "Bearer token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /ws/generations/{id} [get]
func (s *Stream) StreamGeneration(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "stream.generation")
	defer span.End()

	generationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid generation ID"})
		return
	}
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	span.SetAttributes(
		attribute.String("generation.id", generationID.String()),
		attribute.String("user.id", userID.(string)),
	)

	// Verify ownership before upgrading.
	var status models.GenerationStatus
	err = s.pool.QueryRow(ctx,
		`SELECT status FROM generations WHERE id = $1 AND user_id = $2`,
		generationID, userID.(string),
	).Scan(&status)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Generation not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		log.Printf(`{"level":"error","message":"Failed to upgrade connection","error":"%v"}`, err)
		return
	}
	defer conn.Close()

	// Snapshot first, so the client always sees the current state even when
	// the replay history has already been dropped.
	snapshot := models.GenerationEvent{
		GenerationID: generationID.String(),
		EventType:    models.EventTypeStageStarted,
		Status:       status,
		Message:      "current state",
		Timestamp:    time.Now().UTC(),
	}
	if payload, err := json.Marshal(snapshot); err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}

	if status.Terminal() {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "generation finished"))
		return
	}

	sub := newWSSubscriber()
	s.hub.Subscribe(generationID.String(), sub)
	defer s.hub.Unsubscribe(generationID.String(), sub)

	errChan := make(chan error, 1)

	// Client -> ignore (one-way stream of pipeline events to the client)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				errChan <- err
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf(`{"level":"warn","message":"Client write failed","generation_id":"%s","error":"%v"}`, generationID, err)
				return
			}
			var event models.GenerationEvent
			if err := json.Unmarshal(payload, &event); err == nil && event.Status.Terminal() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "generation finished"))
				return
			}
		case err := <-errChan:
			if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				span.RecordError(err)
				log.Printf(`{"level":"warn","message":"Client connection closed","generation_id":"%s","error":"%v"}`, generationID, err)
			}
			return
		}
	}
}
