package server

import (
	"chat-relay/auth"
	"chat-relay/sink"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Connect upgrades to a websocket and hands it to the relay. Admission runs
// after the upgrade so that a refusal is reported with a close code.
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = auth.BearerToken(r)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		s.log.Debug("Websocket upgrade failed", "error", err)
		return
	}
	stream := sink.NewWebsocketSink(s.log, conn, s.opts.ConnectionBufferSize, s.opts.MaxFrameSize)
	if err = s.chat.Connect(r.Context(), stream, credential, chi.URLParam(r, "sessionID")); err != nil {
		s.log.Debug("Connection ended by the relay", "connection_id", stream.ID(), "error", err)
	}
}
