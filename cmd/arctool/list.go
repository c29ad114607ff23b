package main

import (
	"github.com/spf13/cobra"

	"github.com/please-build/arcfile"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list ARCHIVE",
		Short: "List archive entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			opts, err := scanOptions(cmd)
			if err != nil {
				return err
			}
			_, err = arcfile.List(reg, args[0], cmd.OutOrStdout(), arcfile.ListOptions{ScanOptions: opts})
			return err
		},
	}
	addScanFlags(cmd)
	return cmd
}
