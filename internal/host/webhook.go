package host

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"outputrocks-nodes/internal/credentials"
)

// WebhookOptions configures a WebhookContext.
type WebhookOptions struct {
	Request        *http.Request
	ResponseWriter http.ResponseWriter
	// Params are the path parameters of the matched route.
	Params        map[string]string
	Credentials   credentials.Store
	CredentialIDs map[string]string
}

// WebhookContext is the WebhookFunctions implementation for one request.
type WebhookContext struct {
	opts WebhookOptions

	bodyOnce sync.Once
	body     map[string]interface{}
}

func NewWebhookContext(opts WebhookOptions) *WebhookContext {
	return &WebhookContext{opts: opts}
}

func (w *WebhookContext) Request() *http.Request {
	return w.opts.Request
}

func (w *WebhookContext) ResponseWriter() http.ResponseWriter {
	return w.opts.ResponseWriter
}

// HeaderData returns headers with lower-cased names; repeated values are joined.
func (w *WebhookContext) HeaderData() map[string]interface{} {
	out := make(map[string]interface{}, len(w.opts.Request.Header))
	for name, values := range w.opts.Request.Header {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return out
}

func (w *WebhookContext) ParamsData() map[string]interface{} {
	out := make(map[string]interface{}, len(w.opts.Params))
	for k, v := range w.opts.Params {
		out[k] = v
	}
	return out
}

func (w *WebhookContext) QueryData() map[string]interface{} {
	query := w.opts.Request.URL.Query()
	out := make(map[string]interface{}, len(query))
	for k, values := range query {
		if len(values) == 1 {
			out[k] = values[0]
			continue
		}
		out[k] = values
	}
	return out
}

// BodyData decodes the request body once. Bodies that are not a JSON object
// yield an empty map.
func (w *WebhookContext) BodyData() map[string]interface{} {
	w.bodyOnce.Do(func() {
		w.body = map[string]interface{}{}
		if w.opts.Request.Body == nil {
			return
		}
		raw, err := io.ReadAll(w.opts.Request.Body)
		if err != nil {
			return
		}
		w.opts.Request.Body = io.NopCloser(bytes.NewReader(raw))
		var decoded map[string]interface{}
		if err := json.Unmarshal(raw, &decoded); err == nil && decoded != nil {
			w.body = decoded
		}
	})
	return w.body
}

func (w *WebhookContext) Credentials(ctx context.Context, credentialType string) (credentials.Data, error) {
	if w.opts.Credentials == nil {
		return nil, nil
	}
	id := w.opts.CredentialIDs[credentialType]
	if id == "" {
		id = "default"
	}
	return w.opts.Credentials.Get(ctx, credentialType, id)
}

func (w *WebhookContext) PrepareBinaryData(data []byte, fileName, mimeType string) BinaryData {
	return PrepareBinaryData(data, fileName, mimeType)
}
