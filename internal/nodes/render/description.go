package render

import "outputrocks-nodes/pkg/registry"

// Description returns the UI schema of a render variant.
func (v Variant) Description() registry.NodeDescription {
	desc := registry.NodeDescription{
		Name:        v.Name,
		DisplayName: v.DisplayName,
		Icon:        "file:outputrocks.svg",
		Group:       []string{"transform"},
		Version:     1,
		Subtitle:    "rendering template",
		Description: v.Summary,
		Defaults:    map[string]string{"name": v.DisplayName, "color": "#3b4151"},
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Credentials: []registry.CredentialRef{{Name: CredentialType, Required: true}},
		TaskType:    TaskType(v),
	}

	if v.Resumable {
		desc.Webhooks = []registry.WebhookDescriptor{{
			Name:         "default",
			HTTPMethod:   "POST",
			ResponseMode: "onReceived",
			Path:         "",
			Restartable:  true,
		}}
	}

	desc.Properties = append(desc.Properties, formatProperty(v))
	desc.Properties = append(desc.Properties, registry.Property{
		DisplayName: "Webhook Identifier",
		Name:        ParamWebhook,
		Type:        registry.TypeString,
		Default:     "",
		Placeholder: "n8n-webhook",
		Description: "The Webhook of the document",
	})

	if v.Email {
		desc.Properties = append(desc.Properties,
			registry.Property{
				DisplayName: "Email Template Identifier",
				Name:        ParamEmailTemplate,
				Type:        registry.TypeString,
				Required:    true,
				Default:     "",
				Placeholder: "my-email",
				Description: "The identifier of the email template",
			},
			registry.Property{
				DisplayName: "Email Server Identifier",
				Name:        ParamEmailServer,
				Type:        registry.TypeString,
				Required:    true,
				Default:     "",
				Placeholder: "server-identifier",
			},
		)
	} else {
		desc.Properties = append(desc.Properties, registry.Property{
			DisplayName: "Template identifier",
			Name:        ParamTemplate,
			Type:        registry.TypeString,
			Required:    true,
			Default:     "",
			Placeholder: "sample",
			Description: "The identifier of the template",
		})
	}

	desc.Properties = append(desc.Properties,
		registry.Property{
			DisplayName: "Metadata",
			Name:        ParamMetadata,
			Type:        registry.TypeString,
			Default:     "",
			Placeholder: "metadata",
			Description: "JSON object sent along with the rendering",
		},
		registry.Property{
			DisplayName: "Data",
			Name:        ParamData,
			Type:        registry.TypeString,
			Required:    true,
			Default:     "",
			Placeholder: "data",
			Description: "JSON data the template is rendered with",
		},
	)

	if v.Resumable {
		desc.Properties = append(desc.Properties, registry.Property{
			DisplayName: "Webhook waiting URL",
			Name:        ParamWebhookWaitingURL,
			Type:        registry.TypeHidden,
			Default:     "={{$resumeWebhookUrl}}",
		})
	}
	return desc
}

func formatProperty(v Variant) registry.Property {
	def := "pdf"
	if v.Email {
		def = "html"
	}
	return registry.Property{
		DisplayName: "Format",
		Name:        ParamFormat,
		Type:        registry.TypeOptions,
		Default:     def,
		Description: "Document format",
		Options: []registry.Option{
			{Name: "PDF", Value: "pdf"},
			{Name: "TXT", Value: "txt"},
			{Name: "HTML", Value: "html"},
		},
	}
}

// Defaults returns the declared property defaults keyed by name.
func (v Variant) Defaults() map[string]interface{} {
	props := v.Description().Properties
	out := make(map[string]interface{}, len(props))
	for _, p := range props {
		out[p.Name] = p.Default
	}
	return out
}

// TaskType is the Zeebe job type a variant listens on.
func TaskType(v Variant) string {
	return "outputrocks." + v.Name
}
