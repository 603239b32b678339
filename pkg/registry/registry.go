// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry holds node and credential descriptions by name.
type Registry struct {
	mu          sync.RWMutex
	nodes       map[string]NodeDescription
	credentials map[string]CredentialDescription
}

func New() *Registry {
	return &Registry{
		nodes:       make(map[string]NodeDescription),
		credentials: make(map[string]CredentialDescription),
	}
}

func (r *Registry) RegisterNode(desc NodeDescription) error {
	if err := ValidateNode(desc); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nodes[desc.Name]; exists {
		return fmt.Errorf("node %q already registered", desc.Name)
	}
	r.nodes[desc.Name] = desc
	return nil
}

func (r *Registry) RegisterCredential(desc CredentialDescription) error {
	if err := ValidateCredential(desc); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.credentials[desc.Name]; exists {
		return fmt.Errorf("credential %q already registered", desc.Name)
	}
	r.credentials[desc.Name] = desc
	return nil
}

func (r *Registry) Node(name string) (NodeDescription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.nodes[name]
	return desc, ok
}

func (r *Registry) Credential(name string) (CredentialDescription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.credentials[name]
	return desc, ok
}

// Nodes returns all node descriptions sorted by name.
func (r *Registry) Nodes() []NodeDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeDescription, 0, len(r.nodes))
	for _, desc := range r.nodes {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Credentials returns all credential descriptions sorted by name.
func (r *Registry) Credentials() []CredentialDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CredentialDescription, 0, len(r.credentials))
	for _, desc := range r.credentials {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Catalog snapshots the registry.
func (r *Registry) Catalog(version string) Catalog {
	return Catalog{
		Version:     version,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Nodes:       r.Nodes(),
		Credentials: r.Credentials(),
	}
}

// Validate checks that every credential a node references is registered.
func (r *Registry) Validate() []error {
	var errs []error
	for _, node := range r.Nodes() {
		for _, ref := range node.Credentials {
			if _, ok := r.Credential(ref.Name); !ok {
				errs = append(errs, fmt.Errorf("node %q references unknown credential %q", node.Name, ref.Name))
			}
		}
	}
	return errs
}

func ValidateNode(desc NodeDescription) error {
	if desc.Name == "" {
		return fmt.Errorf("node name is required")
	}
	if desc.DisplayName == "" {
		return fmt.Errorf("node %q: displayName is required", desc.Name)
	}
	if desc.Version < 1 {
		return fmt.Errorf("node %q: version must be >= 1", desc.Name)
	}
	return validateProperties("node "+desc.Name, desc.Properties)
}

func ValidateCredential(desc CredentialDescription) error {
	if desc.Name == "" {
		return fmt.Errorf("credential name is required")
	}
	if err := validateProperties("credential "+desc.Name, desc.Properties); err != nil {
		return err
	}
	props := make(map[string]bool, len(desc.Properties))
	for _, p := range desc.Properties {
		props[p.Name] = true
	}
	for header, prop := range desc.AuthenticateHeaders {
		if !props[prop] {
			return fmt.Errorf("credential %q: header %s uses unknown property %q", desc.Name, header, prop)
		}
	}
	return nil
}

func validateProperties(owner string, props []Property) error {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if p.Name == "" {
			return fmt.Errorf("%s: property without name", owner)
		}
		if seen[p.Name] {
			return fmt.Errorf("%s: duplicate property %q", owner, p.Name)
		}
		seen[p.Name] = true
		if p.Type == TypeOptions && len(p.Options) == 0 {
			return fmt.Errorf("%s: options property %q has no options", owner, p.Name)
		}
	}
	return nil
}

// LoadCatalog reads a catalog previously written by SaveCatalog. Files
// ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var catalog Catalog
	if isYAML(path) {
		err = yaml.Unmarshal(data, &catalog)
	} else {
		err = json.Unmarshal(data, &catalog)
	}
	if err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return &catalog, nil
}

func SaveCatalog(path string, catalog Catalog) error {
	data, err := EncodeCatalog(catalog, formatOf(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EncodeCatalog renders the catalog as "json" or "yaml".
func EncodeCatalog(catalog Catalog, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(catalog)
	case "json", "":
		return json.MarshalIndent(catalog, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
}

// ValidateCatalog checks every entry of a loaded catalog.
func ValidateCatalog(catalog *Catalog) []error {
	reg := New()
	var errs []error
	for _, cred := range catalog.Credentials {
		if err := reg.RegisterCredential(cred); err != nil {
			errs = append(errs, err)
		}
	}
	for _, node := range catalog.Nodes {
		if err := reg.RegisterNode(node); err != nil {
			errs = append(errs, err)
		}
	}
	return append(errs, reg.Validate()...)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func formatOf(path string) string {
	if isYAML(path) {
		return "yaml"
	}
	return "json"
}
