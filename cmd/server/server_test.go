package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/startrescue/exam"
	"github.com/liamcoop/startrescue/internal/config"
	"github.com/liamcoop/startrescue/internal/logger"
)

// examView is the subset of a snapshot the tests inspect.
type examView struct {
	Phase            string `json:"phase"`
	QuestionIndex    int    `json:"questionIndex"`
	SecondsRemaining int    `json:"secondsRemaining"`
	Score            int    `json:"score"`
	Answered         int    `json:"answered"`
	Feedback         string `json:"feedback"`
	Examinee         struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"examinee"`
	Patient *struct {
		ID string `json:"id"`
	} `json:"patient"`
}

type actionView struct {
	Applied bool     `json:"applied"`
	Exam    examView `json:"exam"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server, err := NewServer(config.Config{RandomSeed: 42})
	require.NoError(t, err)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createExam(t *testing.T, baseURL string) (string, examView) {
	t.Helper()
	resp := doRequest(t, http.MethodPost, baseURL+"/api/v1/exams", map[string]string{
		"name":         "Ana Souza",
		"sector":       "Rescue",
		"registration": "RA-1",
		"email":        "ana@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	created := decode[struct {
		ID   string   `json:"id"`
		Exam examView `json:"exam"`
	}](t, resp)
	require.NotEmpty(t, created.ID)
	return created.ID, created.Exam
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	createExam(t, ts.URL)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.SessionsLoaded)
}

func TestProtocol(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/protocol", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Rules []struct {
			ID         string `json:"id"`
			Expression string `json:"expression"`
			Color      string `json:"color"`
		} `json:"rules"`
	}](t, resp)

	require.NotEmpty(t, body.Rules)
	assert.Equal(t, "hemorrhage-control", body.Rules[0].ID)
	assert.Equal(t, "RED", body.Rules[0].Color)
	last := body.Rules[len(body.Rules)-1]
	assert.Equal(t, "true", last.Expression)
	assert.Equal(t, "YELLOW", last.Color)
}

func TestCreateExam(t *testing.T) {
	ts := newTestServer(t)

	id, snap := createExam(t, ts.URL)
	assert.Equal(t, "awaiting_answer", snap.Phase)
	assert.Equal(t, 1, snap.QuestionIndex)
	assert.Equal(t, exam.QuestionTime, snap.SecondsRemaining)
	assert.Equal(t, "ana@example.com", snap.Examinee.Email)
	require.NotNil(t, snap.Patient)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/v1/exams/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[examView](t, resp)
	assert.Equal(t, snap.Patient.ID, got.Patient.ID)
}

func TestCreateExamValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/exams", map[string]string{"sector": "Rescue"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/exams", strings.NewReader("{not json"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	errBody := decode[ErrorResponse](t, raw)
	assert.Equal(t, "invalid request body", errBody.Error)
}

func TestUnknownExam(t *testing.T) {
	ts := newTestServer(t)
	base := ts.URL + "/api/v1/exams/does-not-exist"
	before := logger.Total404Errors.Load()

	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodGet, base, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodPost, base+"/answer", map[string]string{"color": "RED"}).StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodPost, base+"/next", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodGet, base+"/results.csv", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodDelete, base, nil).StatusCode)
	// Counters move after the response is flushed.
	assert.Eventually(t, func() bool { return logger.Total404Errors.Load()-before >= 5 }, time.Second, 5*time.Millisecond)
}

func TestAnswerInvalidColor(t *testing.T) {
	ts := newTestServer(t)
	id, _ := createExam(t, ts.URL)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/v1/exams/"+id+"/answer", map[string]string{"color": "PURPLE"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	snap := decode[examView](t, doRequest(t, http.MethodGet, ts.URL+"/api/v1/exams/"+id, nil))
	assert.Equal(t, "awaiting_answer", snap.Phase)
}

func TestAnswerAndNext(t *testing.T) {
	ts := newTestServer(t)
	id, _ := createExam(t, ts.URL)
	base := ts.URL + "/api/v1/exams/" + id

	first := decode[actionView](t, doRequest(t, http.MethodPost, base+"/answer", map[string]string{"color": "green"}))
	assert.True(t, first.Applied)
	assert.Equal(t, "showing_feedback", first.Exam.Phase)
	assert.NotEmpty(t, first.Exam.Feedback)
	assert.Equal(t, 1, first.Exam.Answered)

	again := decode[actionView](t, doRequest(t, http.MethodPost, base+"/answer", map[string]string{"color": "RED"}))
	assert.False(t, again.Applied)
	assert.Equal(t, 1, again.Exam.Answered)

	tq := decode[actionView](t, doRequest(t, http.MethodPost, base+"/tourniquet", nil))
	assert.False(t, tq.Applied, "tourniquet during feedback")

	next := decode[actionView](t, doRequest(t, http.MethodPost, base+"/next", nil))
	assert.True(t, next.Applied)
	assert.Equal(t, 2, next.Exam.QuestionIndex)
	assert.Equal(t, "awaiting_answer", next.Exam.Phase)

	tq = decode[actionView](t, doRequest(t, http.MethodPost, base+"/tourniquet", nil))
	assert.True(t, tq.Applied)
}

func TestFullExamAndExports(t *testing.T) {
	ts := newTestServer(t)
	id, _ := createExam(t, ts.URL)
	base := ts.URL + "/api/v1/exams/" + id

	var last actionView
	for i := 0; i < exam.TotalQuestions; i++ {
		doRequest(t, http.MethodPost, base+"/airway", nil)
		answer := decode[actionView](t, doRequest(t, http.MethodPost, base+"/answer", map[string]string{"color": "YELLOW"}))
		require.True(t, answer.Applied, "question %d", i+1)
		last = decode[actionView](t, doRequest(t, http.MethodPost, base+"/next", nil))
		require.True(t, last.Applied)
	}
	assert.Equal(t, "finished", last.Exam.Phase)
	assert.Nil(t, last.Exam.Patient)

	results := decode[struct {
		Records []exam.AnswerRecord `json:"records"`
		Summary exam.Summary        `json:"summary"`
	}](t, doRequest(t, http.MethodGet, base+"/results", nil))
	require.Len(t, results.Records, exam.TotalQuestions)
	assert.Equal(t, exam.TotalQuestions, results.Summary.Answered)
	assert.Equal(t, results.Summary.Score*100/exam.TotalQuestions, results.Summary.Accuracy)

	csvResp := doRequest(t, http.MethodGet, base+"/results.csv", nil)
	require.Equal(t, http.StatusOK, csvResp.StatusCode)
	assert.Contains(t, csvResp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, csvResp.Header.Get("Content-Disposition"), ".csv")
	csvBody, err := io.ReadAll(csvResp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csvBody), "Name;Ana Souza\n"))
	assert.Equal(t, 4+1+1+exam.TotalQuestions, strings.Count(string(csvBody), "\n"))

	pdfResp := doRequest(t, http.MethodGet, base+"/results.pdf", nil)
	require.Equal(t, http.StatusOK, pdfResp.StatusCode)
	assert.Equal(t, "application/pdf", pdfResp.Header.Get("Content-Type"))
	pdfBody, err := io.ReadAll(pdfResp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfBody, []byte("%PDF-")))
}

func TestRestartAndDelete(t *testing.T) {
	ts := newTestServer(t)
	id, _ := createExam(t, ts.URL)
	base := ts.URL + "/api/v1/exams/" + id

	doRequest(t, http.MethodPost, base+"/answer", map[string]string{"color": "RED"})
	doRequest(t, http.MethodPost, base+"/next", nil)

	restarted := decode[actionView](t, doRequest(t, http.MethodPost, base+"/restart", nil))
	assert.True(t, restarted.Applied)
	assert.Equal(t, 1, restarted.Exam.QuestionIndex)
	assert.Equal(t, 0, restarted.Exam.Answered)
	assert.Equal(t, "Ana Souza", restarted.Exam.Examinee.Name)

	assert.Equal(t, http.StatusNoContent, doRequest(t, http.MethodDelete, base, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, doRequest(t, http.MethodGet, base, nil).StatusCode)
}
