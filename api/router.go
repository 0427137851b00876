package api

import (
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gorilla/mux"

	"github.com/veridraw/veridraw/log"
)

// EnrichedResponseWriter remembers the status code for request logging.
type EnrichedResponseWriter struct {
	http.ResponseWriter
	Status int
}

// NewEnrichedResponseWriter wraps a response writer.
func NewEnrichedResponseWriter(w http.ResponseWriter) *EnrichedResponseWriter {
	return &EnrichedResponseWriter{w, 0}
}

// WriteHeader wraps the original WriteHeader function.
func (ew *EnrichedResponseWriter) WriteHeader(code int) {
	ew.Status = code
	ew.ResponseWriter.WriteHeader(code)
}

// Flush passes through so streaming handlers keep working when wrapped.
func (ew *EnrichedResponseWriter) Flush() {
	if flusher, ok := ew.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// RequestLogger is a logging middleware.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ew := NewEnrichedResponseWriter(w)
		next.ServeHTTP(ew, r)
		log.Infof("api: request %s %d %s", r.RemoteAddr, ew.Status, r.RequestURI)
	})
}

func (s *Server) router() *mux.Router {
	router := mux.NewRouter()

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/draw", s.submitDraw).Methods(http.MethodPost)
	v1.HandleFunc("/draw/{id}", s.drawResult).Methods(http.MethodGet)
	v1.HandleFunc("/draw/{id}/bits", s.drawBits).Methods(http.MethodGet)
	v1.HandleFunc("/audit", s.quickAudit).Methods(http.MethodPost)
	v1.HandleFunc("/audit/full", s.submitAudit).Methods(http.MethodPost)
	v1.HandleFunc("/audit/{id}", s.auditResult).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}", s.jobStatus).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}", s.cancelJob).Methods(http.MethodDelete)
	v1.HandleFunc("/jobs/{id}/stream", s.streamSSE).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{id}/ws", s.streamWebsocket).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	}).Methods(http.MethodGet)

	router.Use(RequestLogger)
	return router
}
