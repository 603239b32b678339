package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNode() NodeDescription {
	return NodeDescription{
		Name:        "sample",
		DisplayName: "Sample",
		Group:       []string{"transform"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Credentials: []CredentialRef{{Name: "sampleApi", Required: true}},
		Properties: []Property{
			{DisplayName: "Format", Name: "format", Type: TypeOptions, Default: "pdf", Options: []Option{{Name: "PDF", Value: "pdf"}}},
		},
	}
}

func TestRegistry_RegisterAndList(t *testing.T) {
	reg := New()
	require.NoError(t, reg.RegisterNode(sampleNode()))
	require.NoError(t, reg.RegisterCredential(CredentialDescription{
		Name:                "sampleApi",
		DisplayName:         "Sample API",
		Properties:          []Property{{DisplayName: "Token", Name: "apiToken", Type: TypeString, Default: ""}},
		AuthenticateHeaders: map[string]string{"X-AUTH-TOKEN": "apiToken"},
	}))

	assert.Error(t, reg.RegisterNode(sampleNode()), "duplicate registration")

	desc, ok := reg.Node("sample")
	require.True(t, ok)
	assert.Equal(t, "Sample", desc.DisplayName)
	assert.Len(t, reg.Nodes(), 1)
	assert.Empty(t, reg.Validate())
}

func TestRegistry_ValidateReportsUnknownCredential(t *testing.T) {
	reg := New()
	require.NoError(t, reg.RegisterNode(sampleNode()))

	errs := reg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "sampleApi")
}

func TestValidateNode(t *testing.T) {
	node := sampleNode()
	node.Properties = append(node.Properties, Property{Name: "format", Type: TypeString})
	assert.ErrorContains(t, ValidateNode(node), "duplicate property")

	node = sampleNode()
	node.Properties[0].Options = nil
	assert.ErrorContains(t, ValidateNode(node), "has no options")

	node = sampleNode()
	node.Version = 0
	assert.Error(t, ValidateNode(node))
}

func TestValidateCredential_UnknownHeaderProperty(t *testing.T) {
	err := ValidateCredential(CredentialDescription{
		Name:                "broken",
		AuthenticateHeaders: map[string]string{"X-AUTH-TOKEN": "missing"},
	})
	assert.ErrorContains(t, err, "unknown property")
}

func TestCatalog_SaveAndLoad(t *testing.T) {
	reg := New()
	require.NoError(t, reg.RegisterNode(sampleNode()))

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, SaveCatalog(path, reg.Catalog("1.0.0")))

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", loaded.Version)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, "sample", loaded.Nodes[0].Name)
}

func TestCatalog_YAMLRoundTrip(t *testing.T) {
	reg := New()
	require.NoError(t, reg.RegisterNode(sampleNode()))

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, SaveCatalog(path, reg.Catalog("2.0.0")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "displayName: Sample")

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", loaded.Version)
	assert.Equal(t, "pdf", loaded.Nodes[0].Properties[0].Default)
}

func TestEncodeCatalog_UnknownFormat(t *testing.T) {
	_, err := EncodeCatalog(Catalog{}, "toml")
	assert.ErrorContains(t, err, "toml")
}

func TestValidateCatalog(t *testing.T) {
	broken := sampleNode()
	broken.Name = "broken"
	broken.Version = 0

	errs := ValidateCatalog(&Catalog{Nodes: []NodeDescription{sampleNode(), broken}})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "version")
	assert.Contains(t, errs[1].Error(), "unknown credential")
}
