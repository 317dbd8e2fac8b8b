package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/monorun/internal/logger"
)

type rootFlags struct {
	verbose    bool
	projectDir string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "monorun",
		Short:         "monorun runs step scripts across the services of a monorepo",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.validate()
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVarP(&flags.projectDir, "project", "C", ".", "Project root directory")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "console", "Log format (console or json)")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newListCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (f *rootFlags) validate() error {
	switch strings.ToLower(f.logFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (expected console or json)", f.logFormat)
	}
	if strings.TrimSpace(f.projectDir) == "" {
		return fmt.Errorf("project directory cannot be empty")
	}
	return nil
}

// logger builds the command logger. quiet raises the default level so log
// lines do not interleave with the interactive view.
func (f *rootFlags) logger(w io.Writer, quiet bool) (*logger.Logger, error) {
	level := "info"
	if quiet {
		level = "error"
	}
	if f.verbose {
		level = "debug"
	}
	return logger.New(logger.Options{
		Level:         level,
		HumanReadable: strings.ToLower(f.logFormat) != "json",
		Writer:        w,
	})
}

func isTerminal(w io.Writer) bool {
	if file, ok := w.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}
