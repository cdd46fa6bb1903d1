package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/falsumairi/ielts-sub001/internal/engine"
	"github.com/falsumairi/ielts-sub001/internal/middleware"
	"github.com/falsumairi/ielts-sub001/internal/model"
	"github.com/falsumairi/ielts-sub001/internal/service"
	ws "github.com/falsumairi/ielts-sub001/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session events and accepts autosave over WebSocket.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// connSink forwards engine events to one WebSocket connection. All writes
// go through its mutex because ticks arrive from the clock goroutine while
// action acknowledgements come from the read loop.
type connSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  zerolog.Logger
}

func (cs *connSink) write(v interface{}) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if err := ws.WriteTyped(cs.conn, v); err != nil {
		cs.log.Debug().Err(err).Msg("Event write failed")
	}
}

func (cs *connSink) Tick(remaining int) {
	cs.write(ws.TickResponse{Event: ws.EventTick, Remaining: remaining})
}

func (cs *connSink) Warning(w engine.Warning) {
	cs.write(ws.WarningResponse{
		Event:       ws.EventWarning,
		Threshold:   w.ThresholdSeconds,
		Remaining:   w.RemainingSeconds,
		AutoDismiss: w.AutoDismissSeconds,
	})
}

func (cs *connSink) TimeEnd() {
	cs.write(ws.TimeEndResponse{Event: ws.EventTimeEnd})
}

func (cs *connSink) StateChange(status model.AttemptStatus) {
	cs.write(ws.StateResponse{Event: ws.EventState, Status: string(status)})
}

func (cs *connSink) PersistWarning(err error) {
	cs.write(ws.PersistWarningResponse{
		Event:  ws.EventPersistWarning,
		Detail: "autosave degraded, answers held in memory",
	})
}

// AttemptStream godoc
// WS /ws/v1/attempts/:attempt_id/stream
// Upgrades to WebSocket for countdown ticks, warnings and autosave.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	userID := claims.UserID

	if err := h.sessionService.VerifyOpenAttempt(c.Request.Context(), attemptID, userID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no open attempt"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", userID).
		Str("attempt_id", attemptID.String()).
		Logger()

	sink := &connSink{conn: conn, log: wsLog}

	// A session only ticks in the process that started it. Without one the
	// stream still accepts autosave; ticks come from local state reloads.
	detach, attachErr := h.sessionService.Attach(attemptID, userID, sink)
	if attachErr == nil {
		defer detach()
	} else {
		wsLog.Debug().Err(attachErr).Msg("No live session to stream")
	}

	wsLog.Info().Msg("Taker connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(c.Request.Context(), sink, attemptID, userID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(c.Request.Context(), sink, wsLog, attemptID, userID)
		case ws.ActionPing:
			sink.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			sink.write(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, sink *connSink, attemptID uuid.UUID, userID int, msg *ws.RequestPayload) {
	if msg.QID == "" {
		sink.write(ws.ErrorResponse{Event: ws.EventError, Error: "q_id is required"})
		return
	}

	// SECURITY: Validate QID is a well-formed UUID to prevent Redis key injection.
	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		sink.write(ws.ErrorResponse{Event: ws.EventError, Error: "invalid q_id format"})
		return
	}

	if err := h.sessionService.SubmitAnswer(ctx, attemptID, userID, questionID, msg.Answer); err != nil {
		if errors.Is(err, service.ErrAttemptFinished) {
			sink.write(ws.ErrorResponse{Event: ws.EventError, Error: "attempt already finished"})
			return
		}
		sink.write(ws.ErrorResponse{Event: ws.EventError, Error: "save failed"})
		return
	}

	sink.write(ws.AutosaveResponse{Event: ws.EventSuccess, Status: "saved"})
}

func (h *WSHandler) handleSubmit(ctx context.Context, sink *connSink, wsLog zerolog.Logger, attemptID uuid.UUID, userID int) {
	if err := h.sessionService.Complete(ctx, attemptID, userID); err != nil {
		wsLog.Error().Err(err).Msg("Submit error")
		sink.write(ws.ErrorResponse{Event: ws.EventError, Error: "submit failed"})
		return
	}

	wsLog.Info().Msg("Attempt submitted")
	sink.write(ws.StateResponse{Event: ws.EventState, Status: string(model.AttemptStatusCompleted)})
}
