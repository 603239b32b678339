package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"outputrocks-nodes/internal/nodes"
	"outputrocks-nodes/pkg/registry"
)

const catalogVersion = "1.0.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "registry-updater",
		Short:         "Inspect and export the Output.Rocks node catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newListCmd(), newExportCmd(), newValidateCmd())
	return root
}

func newListCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the nodes and credentials this module ships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := nodes.NewRegistry()
			if err != nil {
				return err
			}

			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reg.Catalog(catalogVersion))
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tNAME\tDISPLAY NAME\tTASK TYPE\tCREDENTIALS")
			for _, n := range reg.Nodes() {
				taskType := n.TaskType
				if taskType == "" {
					taskType = "-"
				}
				fmt.Fprintf(w, "node\t%s\t%s\t%s\t%s\n", n.Name, n.DisplayName, taskType, credentialNames(n))
			}
			for _, c := range reg.Credentials() {
				fmt.Fprintf(w, "credential\t%s\t%s\t-\t-\n", c.Name, c.DisplayName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		format  string
		out     string
		version string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := nodes.NewRegistry()
			if err != nil {
				return err
			}
			catalog := reg.Catalog(version)

			if out != "" {
				if err := registry.SaveCatalog(out, catalog); err != nil {
					return fmt.Errorf("writing %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d nodes and %d credentials to %s\n",
					len(catalog.Nodes), len(catalog.Credentials), out)
				return nil
			}

			data, err := registry.EncodeCatalog(catalog, format)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "format when writing to stdout: json or yaml")
	cmd.Flags().StringVar(&out, "out", "", "file to write; the extension selects the format")
	cmd.Flags().StringVar(&version, "version", catalogVersion, "catalog version")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <catalog-file>",
		Short: "Validate a catalog file and compare it with the built-in descriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := registry.LoadCatalog(args[0])
			if err != nil {
				return err
			}

			if errs := registry.ValidateCatalog(catalog); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(cmd.ErrOrStderr(), "  -", e)
				}
				return fmt.Errorf("%s has %d invalid entries", args[0], len(errs))
			}

			reg, err := nodes.NewRegistry()
			if err != nil {
				return err
			}
			drift := compare(reg, catalog)
			for _, d := range drift {
				fmt.Fprintln(cmd.OutOrStdout(), "  ~", d)
			}
			if strict && len(drift) > 0 {
				return fmt.Errorf("%s is out of date (%d differences)", args[0], len(drift))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Catalog %q is valid.\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when the file differs from the built-in catalog")
	return cmd
}

// compare lists nodes and properties that differ between the built-in
// registry and a catalog file.
func compare(reg *registry.Registry, catalog *registry.Catalog) []string {
	var drift []string
	inFile := make(map[string]registry.NodeDescription, len(catalog.Nodes))
	for _, n := range catalog.Nodes {
		inFile[n.Name] = n
	}

	for _, builtin := range reg.Nodes() {
		n, ok := inFile[builtin.Name]
		if !ok {
			drift = append(drift, fmt.Sprintf("node %s is missing", builtin.Name))
			continue
		}
		delete(inFile, builtin.Name)
		if n.Version != builtin.Version {
			drift = append(drift, fmt.Sprintf("node %s: version %d, built-in %d", n.Name, n.Version, builtin.Version))
		}
		if got, want := propertyNames(n), propertyNames(builtin); got != want {
			drift = append(drift, fmt.Sprintf("node %s: properties [%s], built-in [%s]", n.Name, got, want))
		}
	}

	extra := make([]string, 0, len(inFile))
	for name := range inFile {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		drift = append(drift, fmt.Sprintf("node %s is not built in", name))
	}
	return drift
}

func propertyNames(n registry.NodeDescription) string {
	names := make([]string, 0, len(n.Properties))
	for _, p := range n.Properties {
		names = append(names, p.Name)
	}
	return strings.Join(names, ",")
}

func credentialNames(n registry.NodeDescription) string {
	if len(n.Credentials) == 0 {
		return "-"
	}
	names := make([]string, 0, len(n.Credentials))
	for _, c := range n.Credentials {
		names = append(names, c.Name)
	}
	return strings.Join(names, ",")
}
