package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/ewtools/ewsub/pkg/archive"
	"github.com/ewtools/ewsub/pkg/config"
	"github.com/ewtools/ewsub/pkg/engine"
	"github.com/ewtools/ewsub/pkg/render"
	"github.com/ewtools/ewsub/pkg/sqlite"
	"github.com/ewtools/ewsub/pkg/text"
)

// scheduleExt is the EasyWorship schedule archive extension.
const scheduleExt = ".ewsx"

type rootFlags struct {
	regex      bool
	ignoreCase bool
	dryRun     bool
	force      bool
	noColor    bool
	configFile string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "ewsub <input> <output> <search> <replace>",
		Short: "Replace text in every table of an EasyWorship schedule file",
		Long: `ewsub searches every text cell of the database inside an EasyWorship
schedule file (.ewsx) and replaces occurrences of the search string,
writing the result to a new schedule file. With --dry-run the changes
are shown as a colored diff instead of being written.`,
		Version:      version,
		Args:         cobra.ExactArgs(4),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags, args[0], args[1], args[2], args[3])
		},
	}

	cmd.Flags().BoolVarP(&flags.regex, "regex", "r", false, "treat search and replace strings as regular expressions, including usage of groups")
	cmd.Flags().BoolVarP(&flags.ignoreCase, "ignore-case", "i", false, "ignore case in search string")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "d", false, "print updated values instead of writing them, useful for finding the right search and replace strings")
	cmd.Flags().BoolVar(&flags.force, "force", false, "overwrite the output file without asking")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "config file path (default "+config.DefaultPath+")")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	return cmd
}

// validateInput checks the schedule file exists and looks like one.
func validateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("file %s could not be found", path)
		}
		return errors.Errorf("checking input file: %w", err)
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory, not a schedule file", path)
	}
	if !strings.HasSuffix(path, scheduleExt) {
		return errors.Errorf("input file does not have the %s extension of an EasyWorship schedule file", scheduleExt)
	}
	return nil
}

// normalizeOutput appends the schedule extension when missing and makes the
// path absolute, so the result location survives workspace changes.
func normalizeOutput(path string) (string, error) {
	if !strings.HasSuffix(path, scheduleExt) {
		path += scheduleExt
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Errorf("resolving output path: %w", err)
	}
	return abs, nil
}

func run(ctx context.Context, flags *rootFlags, input, output, search, replace string) error {
	userLog := render.NewUserLogger(ctx)

	if err := validateInput(input); err != nil {
		return err
	}
	output, err := normalizeOutput(output)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx, flags.configFile)
	if err != nil {
		return err
	}

	pattern, err := text.Compile(search, text.Options{
		Regex:      flags.regex,
		IgnoreCase: flags.ignoreCase,
	})
	if err != nil {
		return err
	}

	if !flags.dryRun && !flags.force {
		if _, err := os.Stat(output); err == nil {
			userLog.Warning("the output file %s already exists and will be overwritten", output)
			ok, err := pterm.DefaultInteractiveConfirm.Show("Do you wish to continue?")
			if err != nil {
				return errors.Errorf("reading confirmation: %w", err)
			}
			if !ok {
				return nil
			}
		}
	}

	ws, err := archive.Extract(ctx, input)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			userLog.Error(cerr, "could not clean up the temporary workspace")
		}
	}()
	if !flags.dryRun {
		userLog.Info("finished extraction of %s", input)
	}

	store, err := sqlite.Open(ctx, ws.DatabasePath())
	if err != nil {
		return err
	}
	storeClosed := false
	defer func() {
		if storeClosed {
			return
		}
		if cerr := store.Close(); cerr != nil {
			userLog.Error(cerr, "could not close the schedule database")
		}
	}()

	printer := render.NewPrinter(os.Stdout, render.Options{
		NoColor:      flags.noColor || cfg.NoColor,
		ProgressStep: cfg.ProgressStep,
	})

	report, err := engine.Scan(ctx, store, pattern, engine.ScanOptions{
		TableFilter: cfg.TableFilter(),
	})
	if err != nil {
		return err
	}

	printer.ScanReport(report)
	if report.Empty() {
		return nil
	}

	opts := engine.ApplyOptions{
		DryRun: flags.dryRun,
		OnDiff: printer.Diff,
	}
	if !flags.dryRun {
		opts.OnProgress = printer.Progress
	}

	summary, err := engine.Apply(ctx, store, report, pattern, replace, opts)
	if err != nil {
		return err
	}
	printer.Summary(summary, report)

	if !flags.dryRun {
		// The database must be closed before repacking so every page is
		// flushed to the workspace file.
		storeClosed = true
		if err := store.Close(); err != nil {
			return err
		}
		if err := ws.Repack(ctx, output); err != nil {
			return err
		}
	}

	userLog.Success("Done!")
	if !flags.dryRun {
		userLog.Info("the updated file can be found in %s", output)
	}
	return nil
}
