// Package resume implements the webhook that resumes a parked render
// execution. It accepts any call and hands the request to the workflow.
package resume

import (
	"context"

	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/host"
)

type Node struct {
	logger logger.Logger
}

func NewNode(log logger.Logger) *Node {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Node{logger: log.WithFields(map[string]interface{}{"node": "resume"})}
}

// Webhook emits one item {headers, params, query, body}. The host answers
// 200 as soon as the item is accepted.
func (n *Node) Webhook(_ context.Context, fns host.WebhookFunctions) (host.WebhookResponse, error) {
	item := host.Item{
		JSON: map[string]interface{}{
			"headers": fns.HeaderData(),
			"params":  fns.ParamsData(),
			"query":   fns.QueryData(),
			"body":    fns.BodyData(),
		},
	}

	n.logger.Debug("resume callback received", map[string]interface{}{"path": fns.Request().URL.Path})

	return host.WebhookResponse{WorkflowData: [][]host.Item{{item}}}, nil
}
