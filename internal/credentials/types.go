// Package credentials declares the Output.Rocks credential types and stores
// their values.
package credentials

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/pkg/registry"
)

// Data is a stored credential: property name to value.
type Data map[string]string

// Credential type names as the workflow host knows them.
const (
	APITokenType   = "OutputRocksApi"
	TriggerAPIType = "outputRocksTriggerApi"
)

// MinWebhookSecretLength is enforced when a trigger credential is saved.
const MinWebhookSecretLength = 32

const documentationURL = "https://docs.n8n.io/integrations/creating-nodes/build/declarative-style-node/"

// Type describes a credential and checks values before they are stored.
type Type interface {
	Name() string
	Description() registry.CredentialDescription
	Validate(data Data) error
}

// Authenticator is implemented by credential types that sign outbound requests.
type Authenticator interface {
	Authenticate(req *http.Request, data Data) error
}

// APIToken authenticates calls to the rendering API with X-AUTH-TOKEN.
type APIToken struct{}

func (APIToken) Name() string { return APITokenType }

func (APIToken) Description() registry.CredentialDescription {
	return registry.CredentialDescription{
		Name:             APITokenType,
		DisplayName:      "OutputRocks API",
		DocumentationURL: documentationURL,
		Properties: []registry.Property{
			{DisplayName: "API Token", Name: "apiToken", Type: registry.TypeString, Default: ""},
		},
		AuthenticateHeaders: map[string]string{"X-AUTH-TOKEN": "apiToken"},
	}
}

func (APIToken) Validate(data Data) error {
	if data["apiToken"] == "" {
		return errors.NewCredentialInvalidError(APITokenType, "apiToken is required")
	}
	return nil
}

func (t APIToken) Authenticate(req *http.Request, data Data) error {
	return applyHeaders(t.Description(), req, data)
}

// TriggerAPI holds the Basic-Auth pair the rendering service uses when it
// delivers documents.
type TriggerAPI struct{}

func (TriggerAPI) Name() string { return TriggerAPIType }

func (TriggerAPI) Description() registry.CredentialDescription {
	return registry.CredentialDescription{
		Name:             TriggerAPIType,
		DisplayName:      "Output.Rocks API",
		DocumentationURL: documentationURL,
		Properties: []registry.Property{
			{DisplayName: "User (client identifier 1)", Name: "clientIdentifier", Type: registry.TypeString, Default: ""},
			{
				DisplayName: "Password (webhook secret key 2)",
				Name:        "webhookSecretKey",
				Type:        registry.TypeString,
				Default:     "",
				TypeOptions: map[string]interface{}{"minValue": MinWebhookSecretLength, "password": true},
			},
		},
	}
}

func (TriggerAPI) Validate(data Data) error {
	var problems []string
	if data["clientIdentifier"] == "" {
		problems = append(problems, "clientIdentifier is required")
	}
	if secret := data["webhookSecretKey"]; secret == "" {
		problems = append(problems, "webhookSecretKey is required")
	} else if len(secret) < MinWebhookSecretLength {
		problems = append(problems, fmt.Sprintf("webhookSecretKey must be at least %d characters", MinWebhookSecretLength))
	}
	if len(problems) > 0 {
		return errors.NewCredentialInvalidError(TriggerAPIType, strings.Join(problems, "; "))
	}
	return nil
}

// applyHeaders copies credential properties into request headers as declared
// by the description.
func applyHeaders(desc registry.CredentialDescription, req *http.Request, data Data) error {
	headers := make([]string, 0, len(desc.AuthenticateHeaders))
	for header := range desc.AuthenticateHeaders {
		headers = append(headers, header)
	}
	sort.Strings(headers)

	for _, header := range headers {
		value := data[desc.AuthenticateHeaders[header]]
		if value == "" {
			return errors.NewCredentialInvalidError(desc.Name, desc.AuthenticateHeaders[header]+" is empty")
		}
		req.Header.Set(header, value)
	}
	return nil
}

// Types returns every credential type this module provides.
func Types() []Type {
	return []Type{APIToken{}, TriggerAPI{}}
}

// Lookup finds a credential type by name.
func Lookup(name string) (Type, bool) {
	for _, t := range Types() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
