// Package trigger implements the authenticated document-delivery webhook.
// The rendering service posts finished documents here using HTTP Basic auth.
package trigger

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strconv"

	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/common/metrics"
	"outputrocks-nodes/internal/common/validation"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/host"
)

const (
	NodeName = "outputRocksTrigger"

	// BinaryPropertyName is the attachment the decoded document is stored under.
	BinaryPropertyName = "Rendered document"

	Realm = "Webhook"
)

// An empty base64_file is rejected: it decodes to a zero-byte document,
// which is never a rendering result.
var deliverySchema = validation.MustCompile("delivery-body", map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"base64_file"},
	"properties": map[string]interface{}{
		"base64_file": map[string]interface{}{"type": "string", "minLength": 1},
		"file_name":   map[string]interface{}{"type": "string"},
		"mime_type":   map[string]interface{}{"type": "string"},
	},
})

type Node struct {
	logger logger.Logger
}

func NewNode(log logger.Logger) *Node {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Node{logger: log.WithFields(map[string]interface{}{"node": NodeName})}
}

// Webhook runs the Basic-auth gate and turns an accepted delivery into one
// item carrying the decoded document. Rejections are written directly to
// the response and reported as NoWebhookResponse.
func (n *Node) Webhook(ctx context.Context, fns host.WebhookFunctions) (host.WebhookResponse, error) {
	w := fns.ResponseWriter()

	creds, err := fns.Credentials(ctx, credentials.TriggerAPIType)
	if err != nil {
		n.logger.Warn("trigger credential unavailable", map[string]interface{}{"error": err.Error()})
	}
	if creds["clientIdentifier"] == "" || creds["webhookSecretKey"] == "" {
		return n.reject(w, http.StatusInternalServerError, errors.NewAuthConfigError()), nil
	}

	user, pass, ok := fns.Request().BasicAuth()
	if !ok {
		return n.reject(w, http.StatusUnauthorized, errors.NewAuthMissingError()), nil
	}

	if !equal(user, creds["clientIdentifier"]) || !equal(pass, creds["webhookSecretKey"]) {
		return n.reject(w, http.StatusForbidden, errors.NewAuthMismatchError()), nil
	}

	body := fns.BodyData()
	document, err := decodeDocument(body)
	if err != nil {
		return n.reject(w, http.StatusBadRequest, errors.Normalize(err)), nil
	}

	fileName, _ := body["file_name"].(string)
	mimeType, _ := body["mime_type"].(string)

	item := host.Item{
		JSON: map[string]interface{}{"body": body},
		Binary: map[string]host.BinaryData{
			BinaryPropertyName: fns.PrepareBinaryData(document, fileName, mimeType),
		},
	}

	metrics.WebhookResponses.WithLabelValues(NodeName, "200").Inc()
	n.logger.Info("document delivered", map[string]interface{}{
		"fileSize": len(document),
		"mimeType": item.Binary[BinaryPropertyName].MimeType,
	})

	return host.WebhookResponse{WorkflowData: [][]host.Item{{item}}}, nil
}

func decodeDocument(body map[string]interface{}) ([]byte, error) {
	result, err := deliverySchema.Validate(body)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !result.Valid {
		return nil, errors.NewInvalidDeliveryError(result.Summary())
	}

	document, err := base64.StdEncoding.DecodeString(body["base64_file"].(string))
	if err != nil {
		return nil, errors.NewInvalidDeliveryError("base64_file: " + err.Error())
	}
	return document, nil
}

// reject writes the challenge response and tells the host not to answer again.
func (n *Node) reject(w http.ResponseWriter, status int, stdErr *errors.StandardError) host.WebhookResponse {
	n.logger.Warn("delivery rejected", map[string]interface{}{
		"statusCode": status,
		"errorCode":  string(stdErr.Code),
		"details":    stdErr.Details,
	})
	metrics.WebhookResponses.WithLabelValues(NodeName, strconv.Itoa(status)).Inc()

	if status != http.StatusBadRequest {
		w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(stdErr.Message))

	return host.WebhookResponse{NoWebhookResponse: true}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
