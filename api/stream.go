package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/veridraw/veridraw/log"
)

// streamSSE replays a job's event log and follows it live as
// server-sent events until the job terminates.
func (s *Server) streamSSE(w http.ResponseWriter, r *http.Request) {
	stream, err := s.orchestrator.Subscribe(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-stream.Events():
			if !ok {
				if stream.Truncated() {
					fmt.Fprint(w, "event: truncated\ndata: {}\n\n")
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Warningf("api: failed to marshal event: %s", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Stage, data)
			flusher.Flush()
		}
	}
}

func allowAnyOrigin(r *http.Request) bool {
	return true
}

// streamWebsocket delivers the same replay-then-live event stream over a
// websocket, one JSON message per event.
func (s *Server) streamWebsocket(w http.ResponseWriter, r *http.Request) {
	stream, err := s.orchestrator.Subscribe(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin:     allowAnyOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 65536,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		stream.Close()
		log.Warningf("api: could not upgrade to websocket: %s", err)
		return
	}
	defer func() {
		stream.Close()
		_ = conn.Close()
	}()

	// drain client frames so close handshakes are noticed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				stream.Close()
				return
			}
		}
	}()

	for event := range stream.Events() {
		data, err := json.Marshal(event)
		if err != nil {
			log.Warningf("api: failed to marshal event: %s", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warningf("api: websocket write error: %s", err)
			}
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job terminal"))
}
