package host

import (
	"context"
	"net/http"
	"time"

	"outputrocks-nodes/internal/credentials"
)

// ExecuteFunctions is what an action node may use while it runs.
type ExecuteFunctions interface {
	InputData() []Item
	// NodeParameter resolves a parameter for one input item. Non-string
	// values are returned JSON encoded.
	NodeParameter(name string, itemIndex int) (string, error)
	ContinueOnFail() bool
	// RequestWithAuthentication signs req with the node's credential of the
	// given type and sends it.
	RequestWithAuthentication(ctx context.Context, credentialType string, req *http.Request) (*http.Response, error)
	// PutExecutionToWait parks the execution until it is resumed or until
	// the deadline passes.
	PutExecutionToWait(ctx context.Context, until time.Time) error
}

// WebhookFunctions is what a webhook node may use while answering a request.
type WebhookFunctions interface {
	Request() *http.Request
	// ResponseWriter is for nodes that answer the caller themselves; they
	// then return NoWebhookResponse.
	ResponseWriter() http.ResponseWriter
	HeaderData() map[string]interface{}
	ParamsData() map[string]interface{}
	QueryData() map[string]interface{}
	BodyData() map[string]interface{}
	Credentials(ctx context.Context, credentialType string) (credentials.Data, error)
	PrepareBinaryData(data []byte, fileName, mimeType string) BinaryData
}

// WebhookResponse is a webhook node's result.
type WebhookResponse struct {
	WorkflowData [][]Item
	// NoWebhookResponse tells the host the node already wrote the HTTP response.
	NoWebhookResponse bool
}

// ExecuteNode is implemented by action nodes.
type ExecuteNode interface {
	Execute(ctx context.Context, fns ExecuteFunctions) ([][]Item, error)
}

// WebhookNode is implemented by nodes that own an inbound endpoint.
type WebhookNode interface {
	Webhook(ctx context.Context, fns WebhookFunctions) (WebhookResponse, error)
}
