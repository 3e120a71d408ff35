package main

import (
	"github.com/spf13/cobra"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

type orderOutput struct {
	Insertion []entity.Type `json:"insertion"`
	Deletion  []entity.Type `json:"deletion"`
}

func newOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print the entity insertion and deletion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := entity.Default()
			return writeJSONLine(cmd.OutOrStdout(), orderOutput{
				Insertion: catalog.InsertionOrder(),
				Deletion:  catalog.DeletionOrder(),
			})
		},
	}
}
