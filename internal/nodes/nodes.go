// Package nodes assembles the node instances and the description catalog
// from configuration.
package nodes

import (
	"fmt"
	"sort"

	"outputrocks-nodes/internal/common/config"
	"outputrocks-nodes/internal/common/logger"
	"outputrocks-nodes/internal/common/observability"
	"outputrocks-nodes/internal/credentials"
	"outputrocks-nodes/internal/nodes/render"
	"outputrocks-nodes/internal/nodes/resume"
	"outputrocks-nodes/internal/nodes/trigger"
	"outputrocks-nodes/pkg/registry"
)

type Dependencies struct {
	Logger        logger.Logger
	Observability *observability.Observability
}

// Set holds the node instances a host process runs.
type Set struct {
	render  map[string]*render.Node
	Resume  *resume.Node
	Trigger *trigger.Node
}

// Build creates every enabled render node plus the two webhook nodes.
func Build(cfg *config.Config, deps Dependencies) (*Set, error) {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	set := &Set{
		render:  make(map[string]*render.Node),
		Resume:  resume.NewNode(log),
		Trigger: trigger.NewNode(log),
	}

	for _, variant := range render.Variants() {
		if !config.IsNodeEnabled(cfg, variant.Name) {
			log.Debug("render node disabled", map[string]interface{}{"node": variant.Name})
			continue
		}

		nodeCfg := RenderConfig(cfg, variant)
		if err := nodeCfg.Validate(); err != nil {
			return nil, fmt.Errorf("node %s: %w", variant.Name, err)
		}

		set.render[variant.Name] = render.NewNode(variant, nodeCfg, render.ServiceDependencies{
			Logger:        log,
			Observability: deps.Observability,
		})
	}
	return set, nil
}

// RenderConfig maps the generic node settings onto a render config.
func RenderConfig(cfg *config.Config, variant render.Variant) *render.Config {
	nodeCfg := config.GetNodeConfig(cfg, variant.Name)
	out := render.DefaultConfig()

	out.Enabled = nodeCfg.Enabled
	if nodeCfg.MaxJobsActive > 0 {
		out.MaxJobsActive = nodeCfg.MaxJobsActive
	}
	if nodeCfg.Timeout > 0 {
		out.Timeout = config.GetDuration(nodeCfg.Timeout)
	}
	if nodeCfg.WaitWindow > 0 {
		out.WaitWindow = config.GetDuration(nodeCfg.WaitWindow)
	}
	if cfg.Renderer.Endpoint != "" {
		out.Endpoint = cfg.Renderer.Endpoint
	}
	out.ResumeURLBase = nodeCfg.ResumeURLBase
	out.CredentialID = nodeCfg.CredentialID
	return out
}

// TaskType returns the job type a render node listens on.
func TaskType(cfg *config.Config, variant render.Variant) string {
	if t := config.GetNodeConfig(cfg, variant.Name).TaskType; t != "" {
		return t
	}
	return render.TaskType(variant)
}

// RenderNodes returns the enabled render nodes sorted by name.
func (s *Set) RenderNodes() []*render.Node {
	out := make([]*render.Node, 0, len(s.render))
	for _, n := range s.render {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// NewRegistry registers the description of every node and credential this
// module ships, enabled or not.
func NewRegistry() (*registry.Registry, error) {
	reg := registry.New()

	for _, typ := range credentials.Types() {
		if err := reg.RegisterCredential(typ.Description()); err != nil {
			return nil, err
		}
	}
	for _, variant := range render.Variants() {
		if err := reg.RegisterNode(variant.Description()); err != nil {
			return nil, err
		}
	}
	if err := reg.RegisterNode(trigger.NewNode(nil).Description()); err != nil {
		return nil, err
	}

	if errs := reg.Validate(); len(errs) > 0 {
		return nil, errs[0]
	}
	return reg, nil
}
