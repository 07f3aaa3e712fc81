package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/catalog"
)

func catalogCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and validate profile catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema catalog files are validated against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := catalog.SchemaJSON()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file-or-glob...]",
		Short: "Validate catalog files without registering them",
		Long: `Validate catalog files against the schema and the api_version constraint.
Without arguments the configured catalog.paths are checked.

Examples:
  modectl catalog validate ./modes/*.yaml
  modectl catalog validate "./modes/**/*.yaml"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := args
			if len(patterns) == 0 {
				patterns = opts.cfg.Catalog.Paths
			}

			loader, err := catalog.NewLoader(opts.cfg.Catalog.APIConstraint)
			if err != nil {
				return err
			}
			files, err := catalog.Expand(patterns)
			if err != nil {
				return err
			}

			p := opts.printer(cmd)
			if len(files) == 0 {
				p.Printf("%s\n", p.dim.Render("no catalog files matched"))
				return nil
			}

			var failed int
			for _, f := range files {
				profiles, err := loader.LoadFile(f)
				if err != nil {
					failed++
					p.Printf("%s %v\n", p.label.Render("FAIL"), err)
					continue
				}
				p.Printf("%s %s (%d modes)\n", p.accent.Render("ok  "), f, len(profiles))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d catalog files are invalid", failed, len(files))
			}
			return nil
		},
	})

	return cmd
}
