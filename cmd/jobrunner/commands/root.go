package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/jobrunner/cmd/jobrunner/internal/format"
	"github.com/vulntor/jobrunner/pkg/appctx"
	"github.com/vulntor/jobrunner/pkg/config"
	"github.com/vulntor/jobrunner/pkg/paths"
)

const cliExecutable = "jobrunner"

// annotationNoStore marks commands that run without opening the status store.
const annotationNoStore = "jobrunner/no-store"

const defaultEnvFile = ".env"

// NewCommand constructs the top-level jobrunner CLI command, wiring global
// flags, configuration loading and the status store lifecycle.
func NewCommand() *cobra.Command {
	var (
		configFile string
		envFile    string
		rt         *session
	)
	closeSession := func() error {
		if rt == nil {
			return nil
		}
		err := rt.Close()
		rt = nil
		return err
	}

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Run jobs in the background and track their status",
		Long: `jobrunner starts jobs that report progress to a status store, escalates
them to the background when they outlive the synchronous wait, and lets other
processes inspect or cancel them through the same store.

Configuration is read from defaults, the --config file, JOBRUNNER_* environment
variables (a .env file is loaded first) and flags, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}

			path := configFile
			if path == "" {
				path = paths.DefaultConfigFile()
			}
			cfgMgr := config.NewManager()
			if err := cfgMgr.Load(cmd.Flags(), path); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			ctx := appctx.WithConfig(cmd.Context(), cfgMgr)

			r, ctx, err := openSession(ctx, cfgMgr.Get(), cmd.Annotations[annotationNoStore] == "")
			if err != nil {
				return err
			}
			rt = r

			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		// Runs only after a successful RunE; covers commands cobra adds at
		// execute time, such as help and completion.
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeSession()
		},
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (default: $XDG_CONFIG_HOME/jobrunner/config.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "Environment file loaded before configuration")
	cmd.PersistentFlags().StringP("output", "o", string(format.ModeTable), "Output format (table, json, yaml)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress summaries and progress lines")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	config.BindFlags(cmd.PersistentFlags())
	config.BindJobsFlags(cmd.PersistentFlags())
	config.BindStoreFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "jobs", Title: "Job Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newStreamCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newCancelCommand())
	cmd.AddCommand(newWatchCommand())
	cmd.AddCommand(newStoreCommand())
	cmd.AddCommand(newVersionCommand())

	// cobra skips post-run hooks when RunE fails, so the session is closed
	// around every RunE instead.
	closeSessionAfterRun(cmd, closeSession)

	return cmd
}

// closeSessionAfterRun wraps the RunE of cmd and its descendants so that
// closeFn runs on every return. A close failure is joined to the command error.
func closeSessionAfterRun(cmd *cobra.Command, closeFn func() error) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) (err error) {
			defer func() {
				if cerr := closeFn(); cerr != nil {
					err = errors.Join(err, cerr)
				}
			}()
			return run(c, args)
		}
	}
	for _, sub := range cmd.Commands() {
		closeSessionAfterRun(sub, closeFn)
	}
}

// loadEnvFile loads KEY=value pairs without overriding the real environment.
// A missing default file is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		log.Debug().Str("path", path).Msg("Loaded environment file")
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load environment file %s: %w", path, err)
}

// ReportError prints err with the output settings of the command that failed,
// followed by any suggestions.
func ReportError(cmd *cobra.Command, err error) {
	if cmd == nil || err == nil {
		return
	}
	f := format.FromCommand(cmd)
	_ = f.PrintError(err)
	if f.Mode() != format.ModeTable {
		return
	}
	for _, hint := range Suggestions(err) {
		_ = f.PrintProgress("  " + hint)
	}
}
