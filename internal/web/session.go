// internal/web/session.go
package web

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ragline/ragline/internal/logging"
	"github.com/ragline/ragline/internal/metrics"
	"github.com/ragline/ragline/internal/rag"
)

// clientMessage is a question sent by the browser.
type clientMessage struct {
	Question string `json:"question"`
}

// serverMessage is one frame sent back to the browser. Type is "fragment"
// while an answer streams, "done" when it completes, or "error".
type serverMessage struct {
	Type      string `json:"type"`
	Data      string `json:"data,omitempty"`
	Category  string `json:"category,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
}

// session is one WebSocket connection. Questions are answered strictly in
// order; the transcript lives in the browser, not here.
type session struct {
	id       string
	conn     *websocket.Conn
	pipeline Pipeline
}

func newSession(conn *websocket.Conn, pipeline Pipeline) *session {
	return &session{
		id:       uuid.New().String(),
		conn:     conn,
		pipeline: pipeline,
	}
}

// run reads questions until the client disconnects. A failed answer sends
// an error frame and keeps the connection open for the next question.
func (s *session) run(ctx context.Context) {
	defer s.conn.Close()
	logging.LogEvent("[WEB] Session %s connected", s.id)

	for {
		var msg clientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.LogEvent("[WEB] Session %s closed unexpectedly: %v", s.id, err)
			} else {
				logging.LogEvent("[WEB] Session %s disconnected", s.id)
			}
			return
		}
		if err := s.answer(ctx, msg.Question); err != nil {
			logging.LogEvent("[WEB] Session %s write failed: %v", s.id, err)
			return
		}
	}
}

// answer streams one response. The returned error is a transport failure;
// pipeline failures are reported to the client instead.
func (s *session) answer(ctx context.Context, question string) error {
	start := time.Now()
	fragments, errs := s.pipeline.AnswerStream(ctx, question)

	for fragment := range fragments {
		if err := s.conn.WriteJSON(serverMessage{Type: "fragment", Data: fragment}); err != nil {
			// Drain so the pipeline goroutine can finish.
			for range fragments {
			}
			<-errs
			return err
		}
	}

	if err := <-errs; err != nil {
		category := rag.ErrorCategory(err)
		metrics.GetInstance().RecordRequest(false, time.Since(start), category)
		logging.LogEvent("[WEB] Session %s answer failed (%s): %v", s.id, category, err)
		return s.conn.WriteJSON(serverMessage{
			Type:     "error",
			Category: category,
			Data:     clientErrorMessage(err),
		})
	}

	metrics.GetInstance().RecordRequest(true, time.Since(start), "")
	return s.conn.WriteJSON(serverMessage{
		Type:      "done",
		ElapsedMS: time.Since(start).Milliseconds(),
	})
}

// clientErrorMessage maps a pipeline error to text safe to show a browser.
// Validation messages describe the user's own input and pass through; the
// rest carry backend detail (URLs, model names) and stay in the log.
func clientErrorMessage(err error) string {
	switch rag.ErrorCategory(err) {
	case "validation":
		return err.Error()
	case "retrieval":
		return "Could not search the index. Please try again."
	case "generation":
		return "The model did not answer. Please try again."
	case "dimension_mismatch":
		return "The index does not match the configured embedding model. Re-run ingest."
	default:
		return "Something went wrong. Please try again."
	}
}
