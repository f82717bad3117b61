package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"jumpcut/internal/logging"
)

const wsWriteTimeout = 10 * time.Second

// handleProjectEvents streams progress events for one run over a websocket.
// The stream closes after the terminal event; a client disconnect only ends
// the stream, never the run itself.
func (s *apiServer) handleProjectEvents(w http.ResponseWriter, r *http.Request, id string) {
	run, ok := s.daemon.manager.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "project not found")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", logging.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	events, unsubscribe := run.Subscribe()
	defer unsubscribe()

	// No client messages are expected; CloseRead keeps the read side drained
	// and cancels the context as soon as the peer goes away, instead of
	// waiting for the next event write to fail.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "client disconnected")
			return
		case evt := <-events:
			payload, err := json.Marshal(evt)
			if err != nil {
				s.logger.Warn("encode event failed", logging.Error(err))
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
			if evt.Stage.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}
		}
	}
}
