package trigger

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/host"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClient = "u"
	testSecret = "p0123456789abcdef0123456789abcdef"
)

var samplePDF = []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")

func newStore(t *testing.T, data credentials.Data) credentials.Store {
	store := credentials.NewMemoryStore()
	if data != nil {
		require.NoError(t, store.Save(context.Background(), credentials.TriggerAPIType, "default", data))
	}
	return store
}

func deliveryBody(t *testing.T, doc []byte) string {
	raw, err := json.Marshal(map[string]interface{}{
		"base64_file": base64.StdEncoding.EncodeToString(doc),
		"rendering":   "r-1",
	})
	require.NoError(t, err)
	return string(raw)
}

func call(t *testing.T, store credentials.Store, body string, auth func(*http.Request)) (host.WebhookResponse, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/webhook/delivery", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != nil {
		auth(req)
	}
	rec := httptest.NewRecorder()

	fns := host.NewWebhookContext(host.WebhookOptions{
		Request:        req,
		ResponseWriter: rec,
		Credentials:    store,
	})

	resp, err := NewNode(logger.NewTestLogger(t)).Webhook(context.Background(), fns)
	require.NoError(t, err)
	return resp, rec
}

func basic(user, pass string) func(*http.Request) {
	return func(r *http.Request) { r.SetBasicAuth(user, pass) }
}

func TestWebhook_AuthGate(t *testing.T) {
	valid := credentials.Data{"clientIdentifier": testClient, "webhookSecretKey": testSecret}

	tests := []struct {
		name       string
		store      credentials.Store
		auth       func(*http.Request)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no credential configured",
			store:      newStore(t, nil),
			auth:       basic(testClient, testSecret),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "No authentication data defined on node!",
		},
		{
			name:       "no credential store at all",
			store:      nil,
			wantStatus: http.StatusInternalServerError,
			wantBody:   "No authentication data defined on node!",
		},
		{
			name:       "missing authorization header",
			store:      newStore(t, valid),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authorization is required!",
		},
		{
			name:  "unparsable authorization header",
			store: newStore(t, valid),
			auth: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer abc")
			},
			wantStatus: http.StatusUnauthorized,
			wantBody:   "Authorization is required!",
		},
		{
			name:       "wrong password",
			store:      newStore(t, valid),
			auth:       basic(testClient, "wrong"),
			wantStatus: http.StatusForbidden,
			wantBody:   "Authorization data is wrong!",
		},
		{
			name:       "user differs in case",
			store:      newStore(t, valid),
			auth:       basic("U", testSecret),
			wantStatus: http.StatusForbidden,
			wantBody:   "Authorization data is wrong!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, rec := call(t, tt.store, deliveryBody(t, samplePDF), tt.auth)

			assert.True(t, resp.NoWebhookResponse)
			assert.Empty(t, resp.WorkflowData)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, `Basic realm="Webhook"`, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestWebhook_AcceptsDelivery(t *testing.T) {
	store := newStore(t, credentials.Data{"clientIdentifier": testClient, "webhookSecretKey": testSecret})

	resp, rec := call(t, store, deliveryBody(t, samplePDF), basic(testClient, testSecret))

	assert.False(t, resp.NoWebhookResponse)
	assert.Empty(t, rec.Body.String(), "the host writes the success response")
	require.Len(t, resp.WorkflowData, 1)
	require.Len(t, resp.WorkflowData[0], 1)

	item := resp.WorkflowData[0][0]
	body := item.JSON["body"].(map[string]interface{})
	assert.Equal(t, "r-1", body["rendering"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(samplePDF), body["base64_file"])

	doc, ok := item.Binary[BinaryPropertyName]
	require.True(t, ok)
	assert.Equal(t, samplePDF, doc.Data)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, len(samplePDF), doc.FileSize)
}

func TestWebhook_Base64RoundTrip(t *testing.T) {
	store := newStore(t, credentials.Data{"clientIdentifier": testClient, "webhookSecretKey": testSecret})

	for _, size := range []int{1, 2, 3, 1024, 4097} {
		doc := make([]byte, size)
		_, err := rand.Read(doc)
		require.NoError(t, err)

		body := `{"base64_file":"` + base64.StdEncoding.EncodeToString(doc) + `"}`
		resp, _ := call(t, store, body, basic(testClient, testSecret))
		require.Len(t, resp.WorkflowData, 1)

		decoded := resp.WorkflowData[0][0].Binary[BinaryPropertyName].Data
		assert.Equal(t, doc, decoded)
	}
}

func TestWebhook_InvalidDelivery(t *testing.T) {
	store := newStore(t, credentials.Data{"clientIdentifier": testClient, "webhookSecretKey": testSecret})

	for name, body := range map[string]string{
		"missing base64_file": `{"rendering":"r-1"}`,
		"not a string":        `{"base64_file":42}`,
		"invalid base64":      `{"base64_file":"***"}`,
		"empty document":      `{"base64_file":""}`,
		"not json":            `base64_file=abc`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, rec := call(t, store, body, basic(testClient, testSecret))

			assert.True(t, resp.NoWebhookResponse)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Delivered document is not valid!", rec.Body.String())
			assert.Empty(t, rec.Header().Get("WWW-Authenticate"), "not an auth challenge")
		})
	}
}

func TestWebhook_UsesDeclaredFileName(t *testing.T) {
	store := newStore(t, credentials.Data{"clientIdentifier": testClient, "webhookSecretKey": testSecret})
	body := `{"base64_file":"` + base64.StdEncoding.EncodeToString([]byte("<p>hi</p>")) + `","file_name":"mail.html"}`

	resp, _ := call(t, store, body, basic(testClient, testSecret))

	doc := resp.WorkflowData[0][0].Binary[BinaryPropertyName]
	assert.Equal(t, "mail.html", doc.FileName)
	assert.Equal(t, "text/html", doc.MimeType)
}

func TestDescription(t *testing.T) {
	desc := NewNode(nil).Description()
	assert.Equal(t, NodeName, desc.Name)
	assert.Equal(t, credentials.TriggerAPIType, desc.Credentials[0].Name)
	assert.Equal(t, "path", desc.Properties[0].Name)
	assert.Empty(t, desc.Inputs)
}
