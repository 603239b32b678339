package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"outputrocks-nodes/internal/common/aws"
	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/host"
	"outputrocks-nodes/internal/nodes/resume"
	"outputrocks-nodes/internal/nodes/trigger"
	"outputrocks-nodes/internal/waiting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) PublishResume(ctx context.Context, messageName, token string, ttl time.Duration, variables map[string]interface{}) error {
	return m.Called(ctx, messageName, token, ttl, variables).Error(0)
}

func (m *MockEngine) StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
	args := m.Called(ctx, processID, variables)
	return args.Get(0).(int64), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyDelivered(ctx context.Context, delivery aws.Delivery) (string, error) {
	args := m.Called(ctx, delivery)
	return args.String(0), args.Error(1)
}

type fixture struct {
	server   *httptest.Server
	engine   *MockEngine
	notifier *MockNotifier
	waiting  *waiting.MemoryStore
}

func newFixture(t *testing.T, withEngine bool) *fixture {
	log := logger.NewTestLogger(t)

	creds := credentials.NewMemoryStore()
	require.NoError(t, creds.Save(context.Background(), credentials.TriggerAPIType, "invoices",
		credentials.Data{"clientIdentifier": "renderer", "webhookSecretKey": secret}))

	f := &fixture{
		engine:   new(MockEngine),
		notifier: new(MockNotifier),
		waiting:  waiting.NewMemoryStore(),
	}

	deps := Deps{
		TriggerNode: trigger.NewNode(log),
		ResumeNode:  resume.NewNode(log),
		Triggers: []Trigger{
			{Path: "/invoices/", CredentialID: "invoices", ProcessID: "invoice-delivered"},
			{Path: "unconfigured", CredentialID: "missing"},
		},
		Credentials:  creds,
		Waiting:      f.waiting,
		MessageName:  "outputrocks-resume",
		MaxBodyBytes: 256 << 10,
		Logger:       log,
	}
	if withEngine {
		deps.Engine = f.engine
		deps.Notifier = f.notifier
	}

	f.server = httptest.NewServer(New(deps).Router())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) post(t *testing.T, path, body string, auth bool) *http.Response {
	req, err := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.SetBasicAuth("renderer", secret)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func deliveryJSON(doc string) string {
	return fmt.Sprintf(`{"base64_file":%q,"file_name":"invoice.pdf"}`, base64.StdEncoding.EncodeToString([]byte(doc)))
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestDeliver_StartsProcess(t *testing.T) {
	f := newFixture(t, true)

	f.engine.On("StartProcess", mock.Anything, "invoice-delivered", mock.MatchedBy(func(vars map[string]interface{}) bool {
		items, ok := vars["items"].([]host.Item)
		if !ok || len(items) != 1 {
			return false
		}
		return string(items[0].Binary[trigger.BinaryPropertyName].Data) == "%PDF-1.4 test"
	})).Return(int64(4503599627370497), nil)

	f.notifier.On("NotifyDelivered", mock.Anything, mock.MatchedBy(func(d aws.Delivery) bool {
		return d.TriggerPath == "invoices" && d.ProcessInstanceKey == 4503599627370497 &&
			d.FileName == "invoice.pdf" && d.MimeType == "application/pdf"
	})).Return("msg-1", nil)

	resp := f.post(t, "/webhook/invoices", deliveryJSON("%PDF-1.4 test"), true)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Workflow was started", decode(t, resp)["message"])
	f.engine.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestDeliver_AuthGate(t *testing.T) {
	f := newFixture(t, true)

	resp := f.post(t, "/webhook/invoices", deliveryJSON("x"), false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, `Basic realm="Webhook"`, resp.Header.Get("WWW-Authenticate"))

	resp = f.post(t, "/webhook/unconfigured", deliveryJSON("x"), true)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	f.engine.AssertNotCalled(t, "StartProcess", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliver_UnknownPath(t *testing.T) {
	f := newFixture(t, true)

	resp := f.post(t, "/webhook/nope", deliveryJSON("x"), true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeliver_EngineUnavailable(t *testing.T) {
	f := newFixture(t, true)
	f.engine.On("StartProcess", mock.Anything, "invoice-delivered", mock.Anything).
		Return(int64(0), errors.NewEngineError("create instance", fmt.Errorf("unavailable"), true))

	resp := f.post(t, "/webhook/invoices", deliveryJSON("x"), true)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "ENGINE_UNAVAILABLE", decode(t, resp)["code"])
	f.notifier.AssertNotCalled(t, "NotifyDelivered", mock.Anything, mock.Anything)
}

func TestDeliver_BodyLimit(t *testing.T) {
	f := newFixture(t, false)

	big := `{"base64_file":"` + strings.Repeat("A", 512<<10) + `"}`
	resp := f.post(t, "/webhook/invoices", big, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResume(t *testing.T) {
	f := newFixture(t, true)
	waitTill := time.Now().Add(2 * time.Minute)
	require.NoError(t, f.waiting.Park(context.Background(), waiting.PendingExecution{
		Token:              "tok-1",
		NodeName:           "outputRocks",
		ProcessInstanceKey: 42,
		WaitTill:           waitTill,
	}))

	f.engine.On("PublishResume", mock.Anything, "outputrocks-resume", "tok-1",
		mock.MatchedBy(func(ttl time.Duration) bool { return ttl > time.Minute && ttl <= 2*time.Minute }),
		mock.MatchedBy(func(vars map[string]interface{}) bool {
			items := vars["items"].([]host.Item)
			body := items[0].JSON["body"].(map[string]interface{})
			return len(items) == 1 && body["status"] == "done"
		}),
	).Return(nil).Once()

	resp := f.post(t, "/webhook-waiting/tok-1?attempt=1", `{"status":"done"}`, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.engine.AssertExpectations(t)

	resp = f.post(t, "/webhook-waiting/tok-1", `{}`, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "token is consumed")
}

func TestResume_UnknownToken(t *testing.T) {
	f := newFixture(t, true)

	resp := f.post(t, "/webhook-waiting/does-not-exist", `{}`, false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	f.engine.AssertNotCalled(t, "PublishResume", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResume_PublishFailureKeepsToken(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.waiting.Park(context.Background(), waiting.PendingExecution{
		Token:    "tok-1",
		WaitTill: time.Now().Add(time.Minute),
	}))
	f.engine.On("PublishResume", mock.Anything, mock.Anything, "tok-1", mock.Anything, mock.Anything).
		Return(errors.NewEngineError("publish message", fmt.Errorf("unavailable"), true))

	resp := f.post(t, "/webhook-waiting/tok-1", `{}`, false)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	_, err := f.waiting.Get(context.Background(), "tok-1")
	assert.NoError(t, err)
}

func TestHealthAndReady(t *testing.T) {
	srv := httptest.NewServer(New(Deps{
		Ready: func(context.Context) error { return fmt.Errorf("redis down") },
	}).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ready, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, ready.StatusCode)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)
	waitTill := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, f.waiting.Park(context.Background(), waiting.PendingExecution{
		Token:    "tok-1",
		NodeName: "outputRocksEmailRenderer",
		WaitTill: waitTill,
	}))

	for i := 0; i < 2; i++ {
		resp, err := http.Get(f.server.URL + "/webhook-waiting/tok-1")
		require.NoError(t, err)
		body := decode(t, resp)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["waiting"])
		assert.Equal(t, "outputRocksEmailRenderer", body["node"])
		assert.Equal(t, "2030-01-02T03:04:05Z", body["waitTill"])
	}

	resp, err := http.Get(f.server.URL + "/webhook-waiting/unknown")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	f.engine.AssertNotCalled(t, "PublishResume", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
