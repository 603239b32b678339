package render

import (
	"context"
	"time"

	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/common/metrics"
	"outputrocks-nodes/internal/host"
	"outputrocks-nodes/pkg/registry"
)

// Node is the outbound render invoker for one variant.
type Node struct {
	variant Variant
	config  *Config
	service *Service
	logger  logger.Logger
	deps    ServiceDependencies
}

func NewNode(variant Variant, config *Config, deps ServiceDependencies) *Node {
	if config == nil {
		config = DefaultConfig()
	}
	service := NewService(deps, variant, config)
	return &Node{
		variant: variant,
		config:  config,
		service: service,
		logger:  service.logger.WithFields(map[string]interface{}{"node": variant.Name}),
		deps:    deps,
	}
}

func (n *Node) Name() string {
	return n.variant.Name
}

func (n *Node) Variant() Variant {
	return n.variant
}

func (n *Node) Config() *Config {
	return n.config
}

func (n *Node) Description() registry.NodeDescription {
	return n.variant.Description()
}

// Execute renders every input item independently. Resumable variants park
// the execution after the first successful item and return right away.
func (n *Node) Execute(ctx context.Context, fns host.ExecuteFunctions) ([][]host.Item, error) {
	start := time.Now()
	input := fns.InputData()

	items := make([]host.Item, len(input), len(input)+1)
	copy(items, input)

	for i := range input {
		payload, err := n.processItem(ctx, fns, i)
		if err != nil {
			metrics.NodeItemErrors.WithLabelValues(n.variant.Name, string(errors.CodeOf(err))).Inc()

			if fns.ContinueOnFail() {
				n.logger.Warn("item failed, continuing", map[string]interface{}{
					"itemIndex": i,
					"error":     err.Error(),
				})
				items = append(items, host.ErrorItem(input[i], i, err))
				continue
			}

			n.finish(ctx, start, "failed")
			return nil, errors.WithItemIndex(err, i)
		}

		items[i].JSON = payload

		if n.variant.Resumable {
			waitTill := time.Now().Add(n.config.WaitWindow)
			if err := fns.PutExecutionToWait(ctx, waitTill); err != nil {
				n.finish(ctx, start, "failed")
				return nil, errors.WithItemIndex(errors.NewWaitingStoreError(err), i)
			}
			n.logger.Info("execution parked until callback", map[string]interface{}{
				"itemIndex": i,
				"waitTill":  waitTill.UTC().Format(time.RFC3339),
			})
			n.finish(ctx, start, "waiting")
			return [][]host.Item{items}, nil
		}
	}

	n.finish(ctx, start, "success")
	return [][]host.Item{items}, nil
}

func (n *Node) processItem(ctx context.Context, fns host.ExecuteFunctions, itemIndex int) (map[string]interface{}, error) {
	req, err := n.service.BuildRequest(fns, itemIndex)
	if err != nil {
		return nil, err
	}
	return n.service.Send(ctx, fns, req)
}

func (n *Node) finish(ctx context.Context, start time.Time, outcome string) {
	metrics.NodeExecutionsTotal.WithLabelValues(n.variant.Name, outcome).Inc()
	n.deps.Observability.RecordRun(ctx, n.variant.Name, outcome, time.Since(start))
}
