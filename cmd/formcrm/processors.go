package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var processorsCmd = &cobra.Command{
	Use:   "processors",
	Short: "List registered processors and their configuration templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		registry, err := a.Host.Registry(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, key := range registry.List() {
			d, err := registry.Get(key)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.Key, d.Name, d.Description)
			for _, field := range d.Template {
				options := make([]string, 0, len(field.Options))
				for _, opt := range field.Options {
					options = append(options, opt.Value+"="+opt.Label)
				}
				required := ""
				if field.Required {
					required = "required"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", field.Key, field.Kind, required, strings.Join(options, ", "))
			}
		}
		return w.Flush()
	},
}
