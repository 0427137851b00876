package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/veridraw/veridraw/bitseq"
	"github.com/veridraw/veridraw/jobs"
	"github.com/veridraw/veridraw/log"
	"github.com/veridraw/veridraw/sample"
)

const maxRequestBody = 8 << 20

// auditRequest accepts either a raw ASCII bit string or a list of
// numbers that is converted to fixed-width big-endian bits. Formatting
// characters in the bit string (whitespace, separators) are dropped.
type auditRequest struct {
	SequenceBits string `json:"sequence_bits"`
	Numbers      []int  `json:"numbers"`
}

func (req *auditRequest) sequence() (bitseq.Sequence, error) {
	switch {
	case req.SequenceBits != "" && len(req.Numbers) > 0:
		return nil, errors.New("provide either sequence_bits or numbers, not both")
	case req.SequenceBits != "":
		seq := bitseq.Filter(req.SequenceBits)
		if len(seq) == 0 {
			return nil, errors.New("sequence_bits contains no 0/1 characters")
		}
		return seq, nil
	case len(req.Numbers) > 0:
		return bitseq.FromNumbers(req.Numbers), nil
	default:
		return nil, errors.New("provide sequence_bits or numbers")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warningf("api: failed to write response: %s", err)
	}
}

// writeError maps the orchestration error taxonomy onto status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var failed *jobs.JobFailedError
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, jobs.ErrJobNotComplete):
		status = http.StatusConflict
	case errors.As(err, &failed):
		status = http.StatusGone
	case errors.Is(err, sample.ErrInsufficientDomain):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) submitDraw(w http.ResponseWriter, r *http.Request) {
	var cfg jobs.DrawConfig
	if !decodeBody(w, r, &cfg) {
		return
	}

	id, err := s.orchestrator.SubmitDraw(cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) drawResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.orchestrator.DrawResult(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) drawBits(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	bits, err := s.orchestrator.WhitenedBits(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":     id,
		"bits":       bits,
		"length":     len(bits),
		"packed_hex": hex.EncodeToString(bitseq.Filter(bits).Pack()),
	})
}

func (s *Server) quickAudit(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	seq, err := req.sequence()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orchestrator.QuickAudit(seq))
}

func (s *Server) submitAudit(w http.ResponseWriter, r *http.Request) {
	var req auditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	seq, err := req.sequence()
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := s.orchestrator.SubmitAudit(seq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) auditResult(w http.ResponseWriter, r *http.Request) {
	report, err := s.orchestrator.AuditResult(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.orchestrator.Job(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	status := map[string]interface{}{
		"job_id":  job.ID,
		"kind":    job.Kind,
		"stage":   job.Stage(),
		"created": job.Created,
	}
	if finished := job.Finished(); !finished.IsZero() {
		status["finished"] = finished
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.Cancel(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
