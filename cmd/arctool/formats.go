package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Print the formats in the format file, the default marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tKEY\tMAGIC\tHEX\tDELIMITER\tEXTENSION\tCHECKSUMS")
			def := reg.Default()
			for _, f := range reg.Formats() {
				mark := ""
				if f == def {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%q\t%s\t%t\n", mark, f.Key, f.Magic, f.MagicHex, f.Delimiter, f.Extension, f.Checksums)
			}
			return w.Flush()
		},
	}
}
