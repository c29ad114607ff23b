package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/please-build/arcfile"
)

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract ARCHIVE",
		Short: "Extract archive entries",
		Long: "Extract the file entries of an archive. Entries that cannot be extracted are reported and skipped; " +
			"the command only fails if the archive itself is unreadable or truncated.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			scan, err := scanOptions(cmd)
			if err != nil {
				return err
			}
			opts, err := extractOptions(cmd)
			if err != nil {
				return err
			}
			opts.ScanOptions = scan

			res, err := arcfile.Extract(reg, args[0], opts)
			if err != nil {
				return err
			}
			if n := len(res.Problems); n > 0 {
				scan.Logger.Warn("Some entries were skipped or had problems", "count", n)
			}
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", ".", "Output directory")
	cmd.Flags().Bool("no-size-check", false, "Do not compare extracted sizes with the declared ones")
	cmd.Flags().Bool("all-codecs", false, "Also extract gzip, xz, zstd and lz4 entries")
	cmd.Flags().Bool("include-stored", false, "Also extract uncompressed entries (implies --all-codecs)")
	cmd.Flags().String("max-size", "", "Skip entries larger than this, e.g. 512MiB")
	addScanFlags(cmd)
	return cmd
}

func extractOptions(cmd *cobra.Command) (arcfile.ExtractOptions, error) {
	out, _ := cmd.Flags().GetString("out")
	noSizeCheck, _ := cmd.Flags().GetBool("no-size-check")
	allCodecs, _ := cmd.Flags().GetBool("all-codecs")
	stored, _ := cmd.Flags().GetBool("include-stored")
	maxSize, _ := cmd.Flags().GetString("max-size")

	opts := arcfile.ExtractOptions{
		OutDir:        out,
		SkipSizeCheck: noSizeCheck,
		Out:           cmd.OutOrStdout(),
	}
	switch {
	case stored:
		opts.Predicate = arcfile.StoredPredicate
	case allCodecs:
		opts.Predicate = arcfile.ExtendedPredicate
	}
	if maxSize != "" {
		n, err := humanize.ParseBytes(maxSize)
		if err != nil {
			return opts, fmt.Errorf("invalid --max-size: %w", err)
		}
		opts.MaxEntrySize = int64(n)
	}
	return opts, nil
}
