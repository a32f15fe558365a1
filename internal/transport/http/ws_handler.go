package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-ledger-service/internal/app"
)

type WSHandler struct {
	svc      Services
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewWSHandler(svc Services, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Question int `json:"question"`
	Option   int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// connWriter serializes writes to one connection. Messages sent after the
// connection is done are dropped.
type connWriter struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newConnWriter() *connWriter {
	return &connWriter{send: make(chan outboundMessage[any], 16), done: make(chan struct{})}
}

func (c *connWriter) push(typ string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-c.done:
	}
}

func (c *connWriter) run(conn *websocket.Conn, logger zerolog.Logger) {
	for {
		select {
		case msg := <-c.send:
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write error")
				// unblocks the read loop, which then closes done
				_ = conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// ServeAttempt drives one student's attempt over a websocket:
// start, select and submit in, started, selected, submitted and expired out.
func (h *WSHandler) ServeAttempt(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	studentID := r.URL.Query().Get("studentId")
	if quizID == "" || studentID == "" {
		http.Error(w, "missing quizId or studentId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	out := newConnWriter()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		out.run(conn, h.logger)
	}()

	onExpire := func(result app.SubmissionResult, err error) {
		if err != nil {
			out.push("error", toErrorPayload(err))
			return
		}
		out.push("expired", result)
	}

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			session, err := h.svc.Attempts.Start(ctx, studentID, quizID, onExpire)
			if err != nil {
				out.push("error", toErrorPayload(err))
				continue
			}
			out.push("started", session)
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.push("error", errorPayload{Code: "bad_request", Message: "invalid select payload"})
				continue
			}
			session, err := h.svc.Attempts.Select(ctx, studentID, quizID, payload.Question, payload.Option)
			if err != nil {
				out.push("error", toErrorPayload(err))
				continue
			}
			out.push("selected", session)
		case "submit":
			result, err := h.svc.Attempts.Submit(ctx, studentID, quizID)
			if err != nil {
				out.push("error", toErrorPayload(err))
				continue
			}
			out.push("submitted", result)
		default:
			out.push("error", errorPayload{Code: "bad_request", Message: "unsupported message type"})
		}
	}

	// The attempt outlives the socket; its timer still forces submission.
	close(out.done)
	<-writerDone
}

// ServeLeaderboard streams live leaderboard snapshots for one quiz.
func (h *WSHandler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	updates, cancel, err := h.svc.Leaderboards.Subscribe(r.Context(), quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only detect the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage[any]{Type: "leaderboard", Payload: update}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
