package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridraw/veridraw/jobs"
	"github.com/veridraw/veridraw/stattest"
)

func newTestServer(t *testing.T) (*httptest.Server, *jobs.Orchestrator) {
	t.Helper()
	orchestrator := jobs.NewOrchestrator()
	t.Cleanup(orchestrator.Shutdown)

	server := httptest.NewServer((&Server{orchestrator: orchestrator}).router())
	t.Cleanup(server.Close)
	return server, orchestrator
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func awaitJob(t *testing.T, server *httptest.Server, id string) string {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(server.URL + "/v1/jobs/" + id)
		require.NoError(t, err)
		var status map[string]interface{}
		decode(t, resp, &status)

		stage, _ := status["stage"].(string)
		if stage == string(jobs.StageCompleted) || stage == string(jobs.StageFailed) {
			return stage
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not terminate in time")
	return ""
}

func TestDrawOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/draw", jobs.DrawConfig{
		Sources:   []string{"os", "time"},
		Bits:      1024,
		Numbers:   3,
		MaxNumber: 10,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var submitted map[string]string
	decode(t, resp, &submitted)
	id := submitted["job_id"]
	require.NotEmpty(t, id)

	require.Equal(t, string(jobs.StageCompleted), awaitJob(t, server, id))

	resp, err := http.Get(server.URL + "/v1/draw/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result jobs.DrawResult
	decode(t, resp, &result)
	assert.Len(t, result.Numbers, 3)
	assert.NotEmpty(t, result.Fingerprint)

	resp, err = http.Get(server.URL + "/v1/draw/" + id + "/bits")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var export struct {
		JobID     string `json:"job_id"`
		Bits      string `json:"bits"`
		Length    int    `json:"length"`
		PackedHex string `json:"packed_hex"`
	}
	decode(t, resp, &export)
	assert.Equal(t, id, export.JobID)
	assert.Equal(t, 1024, export.Length)
	assert.Equal(t, 1024, len(export.Bits))
	assert.Regexp(t, "^[01]+$", export.Bits)
	assert.Len(t, export.PackedHex, 1024/8*2)
}

func TestDrawValidationOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/draw", jobs.DrawConfig{
		Sources: []string{"os"}, Bits: 128, Numbers: 50, MaxNumber: 10,
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuickAuditOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/audit", map[string]string{
		"sequence_bits": strings.Repeat("01", 500),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report stattest.Report
	decode(t, resp, &report)
	require.Equal(t, 3, report.Total)

	byName := make(map[string]stattest.Outcome)
	for _, outcome := range report.Outcomes {
		byName[outcome.Name] = outcome
	}
	assert.True(t, byName["monobit"].Passed)
	assert.False(t, byName["runs"].Passed)
}

func TestAuditInputConversion(t *testing.T) {
	server, _ := newTestServer(t)

	// numbers are converted to fixed-width big-endian bits
	resp := postJSON(t, server.URL+"/v1/audit", map[string]interface{}{
		"numbers": []int{12, 45},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// both inputs at once are rejected
	resp = postJSON(t, server.URL+"/v1/audit", map[string]interface{}{
		"sequence_bits": "0101",
		"numbers":       []int{1, 2},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	// so is an empty request
	resp = postJSON(t, server.URL+"/v1/audit", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	// formatting characters in the bit string are dropped, not rejected
	resp = postJSON(t, server.URL+"/v1/audit", map[string]string{
		"sequence_bits": "0101 1010\n0110 1001",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// but a string with no bits at all is an error
	resp = postJSON(t, server.URL+"/v1/audit", map[string]string{
		"sequence_bits": "none",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestFullAuditOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/audit/full", map[string]string{
		"sequence_bits": strings.Repeat("01", 500),
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var submitted map[string]string
	decode(t, resp, &submitted)
	id := submitted["job_id"]

	require.Equal(t, string(jobs.StageCompleted), awaitJob(t, server, id))

	resp, err := http.Get(server.URL + "/v1/audit/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report stattest.Report
	decode(t, resp, &report)
	assert.Equal(t, len(stattest.Battery), report.Total)
}

func TestUnknownJobOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	for _, path := range []string{
		"/v1/draw/none", "/v1/draw/none/bits", "/v1/audit/none", "/v1/jobs/none",
	} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestSSEStream(t *testing.T) {
	server, orchestrator := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/audit/full", map[string]string{
		"sequence_bits": strings.Repeat("01", 500),
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var submitted map[string]string
	decode(t, resp, &submitted)
	id := submitted["job_id"]

	stream, err := http.Get(server.URL + "/v1/jobs/" + id + "/stream")
	require.NoError(t, err)
	defer func() { _ = stream.Body.Close() }()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	var stages []string
	scanner := bufio.NewScanner(stream.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			stages = append(stages, strings.TrimPrefix(line, "event: "))
		}
	}

	assert.Equal(t, string(jobs.StageCreated), stages[0])
	assert.Equal(t, string(jobs.StageCompleted), stages[len(stages)-1])
	assert.Contains(t, stages, string(jobs.StageRunningTests))

	_, err = orchestrator.AuditResult(id)
	assert.NoError(t, err)
}

func TestWebsocketStream(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/audit/full", map[string]string{
		"sequence_bits": strings.Repeat("01", 500),
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var submitted map[string]string
	decode(t, resp, &submitted)
	id := submitted["job_id"]

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/jobs/" + id + "/ws"
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if wsResp != nil {
		_ = wsResp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	var last jobs.Event
	for {
		var event jobs.Event
		if err := conn.ReadJSON(&event); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
				fmt.Sprintf("unexpected close: %v", err))
			break
		}
		last = event
	}
	assert.Equal(t, jobs.StageCompleted, last.Stage)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCancelOverHTTP(t *testing.T) {
	server, _ := newTestServer(t)

	resp := postJSON(t, server.URL+"/v1/audit/full", map[string]string{
		"sequence_bits": strings.Repeat("01", 500),
	})
	var submitted map[string]string
	decode(t, resp, &submitted)
	id := submitted["job_id"]

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/v1/jobs/"+id, nil)
	require.NoError(t, err)
	cancelResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = cancelResp.Body.Close() }()
	assert.Equal(t, http.StatusAccepted, cancelResp.StatusCode)

	// the job either finished before the flag was seen or failed as
	// cancelled; both are terminal
	awaitJob(t, server, id)
}
