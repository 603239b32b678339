package render

import (
	"encoding/json"

	"outputrocks-nodes/internal/credentials"
)

const DefaultEndpoint = "https://app.output.rocks/api/renderings"

// Variant identifies one of the render node flavours.
type Variant struct {
	Name        string
	DisplayName string
	Summary     string
	// Resumable variants park the execution after the first successful call
	// and expose a resume webhook.
	Resumable bool
	// Email variants send email_template and email_server instead of template.
	Email bool
}

var (
	OutputRocks = Variant{
		Name:        "outputRocks",
		DisplayName: "OutputRocks",
		Summary:     "Generating template document",
		Resumable:   true,
	}
	DocumentRenderer = Variant{
		Name:        "outputRocksDocumentRenderer",
		DisplayName: "Output.Rocks Document Renderer",
		Summary:     "Generating template document",
	}
	EmailRenderer = Variant{
		Name:        "outputRocksEmailRenderer",
		DisplayName: "Output.Rocks Email Renderer",
		Summary:     "Generating email document",
		Resumable:   true,
		Email:       true,
	}
)

// Variants lists every render node.
func Variants() []Variant {
	return []Variant{OutputRocks, DocumentRenderer, EmailRenderer}
}

// CredentialType is the credential every render variant authenticates with.
const CredentialType = credentials.APITokenType

// Parameter names.
const (
	ParamFormat            = "format"
	ParamWebhook           = "webhook"
	ParamTemplate          = "template"
	ParamEmailTemplate     = "email_template"
	ParamEmailServer       = "email_server"
	ParamMetadata          = "metadata"
	ParamData              = "data"
	ParamWebhookWaitingURL = "webhookWaitingUrl"
)

// RenderRequest is the body posted to the rendering service. Optional keys
// are omitted when empty; Metadata is sent whenever it is non-nil, even as {}.
type RenderRequest struct {
	Template      string                 `json:"template,omitempty"`
	EmailTemplate string                 `json:"email_template,omitempty"`
	EmailServer   string                 `json:"email_server,omitempty"`
	Format        string                 `json:"format"`
	Data          interface{}            `json:"data"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Webhook       string                 `json:"webhook,omitempty"`
}

func (r RenderRequest) MarshalJSON() ([]byte, error) {
	type plain RenderRequest
	out := struct {
		plain
		Metadata *map[string]interface{} `json:"metadata,omitempty"`
	}{plain: plain(r)}
	if r.Metadata != nil {
		out.Metadata = &r.Metadata
	}
	return json.Marshal(out)
}
