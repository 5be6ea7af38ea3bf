package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"festcal/internal/calendar"
	"festcal/internal/capture"
	"festcal/internal/config"
	appLog "festcal/internal/log"
	"festcal/internal/printers"
	"festcal/internal/refresh"
	"festcal/internal/schedule"
	"festcal/internal/visibility"
	"festcal/internal/web"
)

const version = "0.1.0"

type rootOptions struct {
	configPath string
	envFile    string
}

// app is the loaded configuration and catalog shared by every command.
type app struct {
	cfg     *config.Config
	catalog *schedule.Catalog
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "festcal",
		Short:         "Plan a festival: pick shows, avoid conflicts, lay out the days.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional .env file with FESTCAL_* overrides")

	cmd.AddCommand(
		newServeCommand(opts),
		newExpandCommand(opts),
		newLayoutCommand(opts),
		newSnapshotCommand(opts),
	)
	return cmd
}

// load reads config and catalog and configures logging.
func (o *rootOptions) load() (*app, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	cfg.ApplyEnv(o.envFile)

	appLog.Init(cfg.Env)
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	cat, err := schedule.LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"festival_start", cfg.Festival.Start,
		"festival_end", cfg.Festival.End,
		"catalog", cfg.Catalog,
		"refresh", cfg.RefreshCron,
		"ics_count", len(cfg.ICS),
	)
	return &app{cfg: cfg, catalog: cat}, nil
}

// representations expands the catalog over the festival window.
func (a *app) representations() (schedule.ExpandResult, error) {
	start, end, err := a.cfg.FestivalRange()
	if err != nil {
		return schedule.ExpandResult{}, err
	}
	return schedule.Expand(a.catalog.Plays, schedule.ExpandConfig{
		RangeStart:            start,
		RangeEnd:              end,
		Location:              a.cfg.Location(),
		MaxOccurrencesPerPlay: a.cfg.MaxOccurrences,
	})
}

func (a *app) parseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, a.cfg.Location())
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		listen string
		once   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Refresh blockers and serve the API and calendar page",
		Example: `
festcal serve --config /etc/festcal/config.yaml
festcal serve --once
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load()
			if err != nil {
				return err
			}
			if listen != "" {
				a.cfg.Listen = listen
			}

			ctx, cancel := signalContext()
			defer cancel()

			store := refresh.NewBlockerStore()
			refresher, err := refresh.New(a.cfg, store)
			if err != nil {
				return err
			}
			if err := refresher.RunOnce(ctx); err != nil {
				if once {
					return err
				}
				appLog.Error("initial blocker refresh failed; continuing", err)
			}
			if once {
				snap := store.Snapshot()
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d blockers loaded\n", len(snap.Blockers))
				return nil
			}

			if _, err := refresher.Start(ctx); err != nil {
				return err
			}

			srv, err := web.NewServer(a.cfg, a.catalog, store)
			if err != nil {
				return err
			}
			err = srv.ListenAndServe(ctx)
			appLog.Info("festcal exiting")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&once, "once", false, "Refresh blockers once and exit")
	return cmd
}

func newExpandCommand(root *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the representations generated from the play catalog",
		Example: `
festcal expand
festcal expand --from 2026-07-08 --to 2026-07-10
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load()
			if err != nil {
				return err
			}
			res, err := a.representations()
			if err != nil {
				return err
			}
			start, end, err := a.cfg.FestivalRange()
			if err != nil {
				return err
			}
			if from != "" {
				if start, err = a.parseDay(from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
			}
			if to != "" {
				if end, err = a.parseDay(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}

			reps := visibility.InRange(res.Representations, start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
			p := printers.New(a.cfg.Location())
			p.Out = cmd.OutOrStdout()
			p.Representations(reps)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD), defaults to the festival start")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD), defaults to the festival end")
	return cmd
}

func newLayoutCommand(root *rootOptions) *cobra.Command {
	var (
		day        string
		favorites  []string
		chosen     []string
		onlyChosen bool
		blockers   bool
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Resolve visibility and lay out one festival day",
		Example: `
festcal layout --day 2026-07-08
festcal layout --day 2026-07-08 --favorites hamlet,medea --chosen rep-0008
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if day == "" {
				return errors.New("--day is required")
			}
			a, err := root.load()
			if err != nil {
				return err
			}
			d, err := a.parseDay(day)
			if err != nil {
				return fmt.Errorf("--day: %w", err)
			}
			res, err := a.representations()
			if err != nil {
				return err
			}

			store := refresh.NewBlockerStore()
			if blockers {
				refresher, err := refresh.New(a.cfg, store)
				if err != nil {
					return err
				}
				ctx, cancel := signalContext()
				defer cancel()
				if err := refresher.RunOnce(ctx); err != nil {
					appLog.Error("blocker refresh failed; laying out without blockers", err)
				}
			}

			if len(favorites) == 0 {
				for _, p := range a.catalog.Plays {
					favorites = append(favorites, p.ID)
				}
			}
			sel := visibility.NewSelection(favorites, chosen).SetShowOnlyChosen(onlyChosen)

			view, err := calendar.Build(calendar.Options{
				Representations: res.Representations,
				Blockers:        store.Snapshot().Blockers,
				Selection:       sel,
				From:            d,
				To:              d,
				Location:        a.cfg.Location(),
			})
			if err != nil {
				return err
			}

			p := printers.New(a.cfg.Location())
			p.Out = cmd.OutOrStdout()
			p.Calendar(view)
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Day to lay out (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&favorites, "favorites", nil, "Favorite play IDs (default: every play)")
	cmd.Flags().StringSliceVar(&chosen, "chosen", nil, "Chosen representation IDs")
	cmd.Flags().BoolVar(&onlyChosen, "only-chosen", false, "Show chosen representations only")
	cmd.Flags().BoolVar(&blockers, "blockers", true, "Fetch blockers from the configured ICS feeds")
	return cmd
}

func newSnapshotCommand(root *rootOptions) *cobra.Command {
	var (
		target string
		out    string
		width  int
		height int
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the calendar page of a running server as PNG",
		Example: `
festcal snapshot --url "http://127.0.0.1:8080/calendar?day=2026-07-08" --out day.png
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.load()
			if err != nil {
				return err
			}
			if target == "" {
				target = "http://" + a.cfg.Listen + "/calendar"
			}
			opts := capture.CaptureOptions{
				URL:        target,
				OutputPath: out,
				Width:      width,
				Height:     height,
			}
			if a.cfg.BasicAuth != nil {
				opts.Username = a.cfg.BasicAuth.Username
				opts.Password = a.cfg.BasicAuth.Password
			}

			ctx, cancel := signalContext()
			defer cancel()
			if err := capture.CaptureCalendarPNG(ctx, opts); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "url", "", "Page to capture (default: the configured listen address)")
	cmd.Flags().StringVar(&out, "out", "./cache/calendar.png", "Output PNG path")
	cmd.Flags().IntVar(&width, "width", capture.DefaultWidth, "Viewport width in pixels")
	cmd.Flags().IntVar(&height, "height", capture.DefaultHeight, "Viewport height in pixels")
	return cmd
}
