package trigger

import (
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/pkg/registry"
)

func (n *Node) Name() string {
	return NodeName
}

func (n *Node) Description() registry.NodeDescription {
	return registry.NodeDescription{
		Name:        NodeName,
		DisplayName: "Output.Rocks Trigger",
		Icon:        "file:OutputRocksTrigger.svg",
		Group:       []string{"trigger"},
		Version:     1,
		Description: "Starts the workflow when a webhook is called",
		Defaults:    map[string]string{"name": "Output.Rocks Trigger"},
		Inputs:      []string{},
		Outputs:     []string{"main"},
		Credentials: []registry.CredentialRef{{Name: credentials.TriggerAPIType, Required: true}},
		Webhooks: []registry.WebhookDescriptor{{
			Name:         "default",
			HTTPMethod:   "POST",
			ResponseMode: "onReceived",
			Path:         `={{$parameter["path"]}}`,
		}},
		Properties: []registry.Property{{
			DisplayName: "Path",
			Name:        "path",
			Type:        registry.TypeString,
			Default:     "",
			Placeholder: "path",
			Required:    true,
			Description: "The path to listen to",
		}},
	}
}
