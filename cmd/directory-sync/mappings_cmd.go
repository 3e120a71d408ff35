package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/modules/directory/domain/mapping"
)

func newMappingsCmd() *cobra.Command {
	var path, format string

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Print the effective field mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := mapping.Format(format)
			if f != mapping.FormatYAML && f != mapping.FormatTOML {
				return withCode(exitUsage, fmt.Errorf("invalid --format %q: want yaml or toml", format))
			}
			mapper, err := mapping.Load(path, entity.Default())
			if err != nil {
				return withCode(exitValidation, err)
			}
			b, err := mapping.Encode(mapper.File(), f)
			if err != nil {
				return withCode(exitValidation, err)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cmd.Flags().StringVar(&path, "mapping", "", "Mapping override file (.yaml, .yml or .toml)")
	cmd.Flags().StringVar(&format, "format", string(mapping.FormatYAML), "Output format: yaml or toml")
	return cmd
}
