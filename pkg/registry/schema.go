// pkg/registry/schema.go
package registry

// Catalog is the serialized form of every node and credential description.
type Catalog struct {
	Version     string                  `json:"version" yaml:"version"`
	LastUpdated string                  `json:"lastUpdated" yaml:"lastUpdated"`
	Nodes       []NodeDescription       `json:"nodes" yaml:"nodes"`
	Credentials []CredentialDescription `json:"credentials" yaml:"credentials"`
}

// NodeDescription declares a node's UI schema to the workflow host.
type NodeDescription struct {
	Name        string              `json:"name" yaml:"name"`
	DisplayName string              `json:"displayName" yaml:"displayName"`
	Icon        string              `json:"icon,omitempty" yaml:"icon,omitempty"`
	Group       []string            `json:"group" yaml:"group"`
	Version     int                 `json:"version" yaml:"version"`
	Subtitle    string              `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Description string              `json:"description" yaml:"description"`
	Defaults    map[string]string   `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Inputs      []string            `json:"inputs" yaml:"inputs"`
	Outputs     []string            `json:"outputs" yaml:"outputs"`
	Credentials []CredentialRef     `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Webhooks    []WebhookDescriptor `json:"webhooks,omitempty" yaml:"webhooks,omitempty"`
	Properties  []Property          `json:"properties" yaml:"properties"`
	// TaskType is the Zeebe job type the node host listens on.
	TaskType string `json:"taskType,omitempty" yaml:"taskType,omitempty"`
}

type CredentialRef struct {
	Name     string `json:"name" yaml:"name"`
	Required bool   `json:"required" yaml:"required"`
}

// WebhookDescriptor declares an inbound endpoint a node owns.
type WebhookDescriptor struct {
	Name         string `json:"name" yaml:"name"`
	HTTPMethod   string `json:"httpMethod" yaml:"httpMethod"`
	ResponseMode string `json:"responseMode" yaml:"responseMode"`
	Path         string `json:"path" yaml:"path"`
	Restartable  bool   `json:"restartWebhook,omitempty" yaml:"restartWebhook,omitempty"`
}

// Property is a single UI parameter.
type Property struct {
	DisplayName    string                 `json:"displayName" yaml:"displayName"`
	Name           string                 `json:"name" yaml:"name"`
	Type           string                 `json:"type" yaml:"type"`
	Default        interface{}            `json:"default" yaml:"default"`
	Required       bool                   `json:"required,omitempty" yaml:"required,omitempty"`
	Description    string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Placeholder    string                 `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options        []Option               `json:"options,omitempty" yaml:"options,omitempty"`
	TypeOptions    map[string]interface{} `json:"typeOptions,omitempty" yaml:"typeOptions,omitempty"`
	DisplayOptions *DisplayOptions        `json:"displayOptions,omitempty" yaml:"displayOptions,omitempty"`
}

type Option struct {
	Name        string `json:"name" yaml:"name"`
	Value       string `json:"value" yaml:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type DisplayOptions struct {
	Show map[string][]interface{} `json:"show,omitempty" yaml:"show,omitempty"`
	Hide map[string][]interface{} `json:"hide,omitempty" yaml:"hide,omitempty"`
}

// CredentialDescription declares the fields a credential type stores.
type CredentialDescription struct {
	Name             string     `json:"name" yaml:"name"`
	DisplayName      string     `json:"displayName" yaml:"displayName"`
	DocumentationURL string     `json:"documentationUrl,omitempty" yaml:"documentationUrl,omitempty"`
	Properties       []Property `json:"properties" yaml:"properties"`
	// AuthenticateHeaders maps header names to credential properties injected
	// into outbound requests.
	AuthenticateHeaders map[string]string `json:"authenticateHeaders,omitempty" yaml:"authenticateHeaders,omitempty"`
}

// Property types.
const (
	TypeString  = "string"
	TypeOptions = "options"
	TypeJSON    = "json"
	TypeHidden  = "hidden"
	TypeBoolean = "boolean"
	TypeNumber  = "number"
)
