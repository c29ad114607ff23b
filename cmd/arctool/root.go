package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"charm.land/log/v2"
	"github.com/spf13/cobra"

	"github.com/please-build/arcfile"
)

// formatEnv names the format descriptor file when --fmt is not given.
const formatEnv = "ARCTOOL_FORMAT_FILE"

var errNoFormatFile = errors.New("no format file: pass --fmt or set " + formatEnv)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "arctool",
		Short:         "Inspect and extract ArchiveFile archives",
		Long:          "List, extract and identify NUL-delimited ArchiveFile containers described by an INI, JSON or YAML format file.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd)
		},
	}
	cmd.PersistentFlags().String("fmt", "", "Format descriptor file (.ini, .json, .yaml); defaults to $"+formatEnv)
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log parsed records")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Only log errors")

	cmd.AddCommand(newListCmd(), newExtractCmd(), newDetectCmd(), newFormatsCmd())
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	level := log.InfoLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = log.DebugLevel
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		level = log.ErrorLevel
	}
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:  level,
		Prefix: "arctool",
	})
	slog.SetDefault(slog.New(logger))
}

func loadRegistry(cmd *cobra.Command) (*arcfile.Registry, error) {
	path, _ := cmd.Flags().GetString("fmt")
	if path == "" {
		path = strings.TrimSpace(os.Getenv(formatEnv))
	}
	if path == "" {
		return nil, errNoFormatFile
	}
	return arcfile.LoadRegistry(path)
}

// scanOptions reads the flags shared by list and extract.
func scanOptions(cmd *cobra.Command) (arcfile.ScanOptions, error) {
	include, _ := cmd.Flags().GetStringSlice("include")
	skip, _ := cmd.Flags().GetBool("skip-checksum")
	saltFile, _ := cmd.Flags().GetString("salt-file")

	opts := arcfile.ScanOptions{
		Include:       include,
		SkipChecksums: skip,
		Logger:        slog.Default(),
	}
	if saltFile != "" {
		salt, err := os.ReadFile(saltFile)
		if err != nil {
			return opts, err
		}
		opts.Salt = []byte(strings.TrimRight(string(salt), "\r\n"))
	}
	return opts, nil
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("include", nil, "Only process entries matching these glob patterns (** matches directories)")
	cmd.Flags().Bool("skip-checksum", false, "Do not verify header and content checksums")
	cmd.Flags().String("salt-file", "", "File holding the HMAC key the checksums were computed with")
}
