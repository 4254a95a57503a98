package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Telepatic-Kodes/rei-os/src/lib"
	"github.com/Telepatic-Kodes/rei-os/src/services"
)

// Version is set at build time.
var Version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string
	var a *app

	root := &cobra.Command{
		Use:          "rei-os",
		Short:        "Consulting-ops sync, analytics and budget alerts",
		Long:         "rei-os pulls usage, scans project directories, keeps rolling spend analytics and raises budget alerts once per month.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a = newApp(configPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/rei-os/config.yaml)")

	get := func() *app { return a }
	root.AddCommand(
		newSyncCmd(get),
		newAnalyticsCmd(get),
		newAlertsCmd(get),
		newStatusCmd(get),
		newScheduleCmd(get),
		newServeCmd(get),
		newHistoryCmd(get),
		newConfigCmd(get),
		newTrayCmd(get),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("rei-os %s\n", Version))
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newSyncCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run all syncs once, then evaluate alerts",
		Long:  "Fetch usage, scan quality and projects, regenerate analytics, then evaluate budget alerts and notify for new ones.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			outcome := get().newScheduler().RunCycle(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(outcome))
			if outcome.Error != "" {
				return lib.SyncError("sync failed")
			}
			return nil
		},
	}
}

func newAnalyticsCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Regenerate and show spend analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			analytics, err := get().analytics.Generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAnalytics(analytics))
			return nil
		},
	}
}

func newAlertsCmd(get func() *app) *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate budget alerts",
		Long:  "Evaluate budget thresholds and print alerts firing for the first time this month. With --active, list every breached threshold without recording anything.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if active {
				fmt.Fprintln(cmd.OutOrStdout(), renderAlerts("Active alerts", a.alerts.Active()))
				return nil
			}
			fired, err := a.alerts.Evaluate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderAlerts("New alerts", fired))
			return nil
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "list all breached thresholds without touching alert state")
	return cmd
}

func newStatusCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync and budget status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			view := statusView{
				ConfigPath: a.configService.GetConfigPath(),
				DataDir:    a.config.DataDir,
				Interval:   a.config.IntervalMinutes,
				Running:    a.syncs.IsRunning(),
				Alerts:     a.alerts.Active(),
			}
			status, err := a.syncs.Status()
			switch {
			case services.IsNotExist(err):
			case err != nil:
				return err
			default:
				view.Sync = status
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(view, time.Now()))
			return nil
		},
	}
}

// runScheduler runs the scheduler and the config watcher until ctx is done.
func runScheduler(ctx context.Context, a *app, runNow bool) error {
	scheduler := a.newScheduler()
	scheduler.SetRunOnStart(runNow)

	watcher := services.NewConfigWatcher(a.configService, scheduler)
	go func() {
		if err := watcher.Run(ctx); err != nil {
			lib.Warn("Config watcher stopped", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return scheduler.Run(ctx)
}

func newScheduleCmd(get func() *app) *cobra.Command {
	var runNow, detach bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run syncs on the configured interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if detach {
				return startDetached(cmd, os.Args[1:])
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()
			return runScheduler(ctx, get(), runNow)
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run a sync immediately instead of waiting for the first tick")
	cmd.Flags().BoolVar(&detach, "detach", false, "start the scheduler as a background process")
	return cmd
}

// detachArgs drops the --detach flag so the child runs in the foreground.
func detachArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "--detach" || arg == "--detach=true" {
			continue
		}
		out = append(out, arg)
	}
	return out
}

func startDetached(cmd *cobra.Command, args []string) error {
	execPath, err := os.Executable()
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeSystem, "failed to get executable path")
	}
	resolved, err := exec.LookPath(execPath)
	if err != nil {
		return lib.WrapError(err, lib.ErrCodeSystem, "failed to resolve executable")
	}

	child := exec.CommandContext(context.Background(), resolved, detachArgs(args)...) // #nosec G204 validated via LookPath
	if err := child.Start(); err != nil {
		return lib.WrapError(err, lib.ErrCodeSystem, "failed to start scheduler")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "rei-os scheduler started (PID: %d)\n", child.Process.Pid)
	fmt.Fprintf(out, "To stop: kill %d\n", child.Process.Pid)
	return child.Process.Release()
}

func newServeCmd(get func() *app) *cobra.Command {
	var addr string
	var withScheduler, runNow bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the manual sync and alert settings API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if addr == "" {
				addr = a.config.ListenAddr
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			schedulerErr := make(chan error, 1)
			if withScheduler {
				go func() { schedulerErr <- runScheduler(ctx, a, runNow) }()
			}

			server := services.NewTriggerServer(a.syncs, a.alerts)
			err := server.ListenAndServe(ctx, addr)
			cancel()
			if withScheduler {
				if schedErr := <-schedulerErr; err == nil {
					err = schedErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config listen_addr)")
	cmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "also run the interval scheduler")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "with --with-scheduler, sync immediately")
	return cmd
}

func newHistoryCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune monthly history files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup <metric>",
		Short: "Delete history files older than the retention window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			deleted, err := a.history.Cleanup(args[0], a.config.RetentionMonths)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deleted %d file(s) older than %d months\n", len(deleted), a.config.RetentionMonths)
			for _, path := range deleted {
				fmt.Fprintln(out, mutedStyle.Render("  "+path))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <metric>",
		Short: "List history files and their record counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			files, err := a.history.ListFiles(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("No history for "+args[0]))
				return nil
			}
			for _, path := range files {
				records, err := a.history.Read(path)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, field(fmt.Sprintf("%d records", len(records)), path))
			}
			return nil
		},
	})
	return cmd
}

func newConfigCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), get().configService.GetConfigPath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(get().config)
			if err != nil {
				return lib.WrapError(err, lib.ErrCodeConfig, "failed to encode config yaml")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
