package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"hrclock/internal/capture"
	"hrclock/internal/config"
	"hrclock/internal/credstore"
	"hrclock/internal/hrportal"
	"hrclock/internal/refresh"
	"hrclock/internal/worktime"
)

const appVersion = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app wires the pieces one command needs.
type app struct {
	cfg       *config.Config
	store     *credstore.Store
	recorder  *capture.Recorder
	refresher *refresh.Refresher
	logger    *zap.Logger

	now  func() time.Time
	pick worktime.CommentPicker
}

func newApp(cfg *config.Config, logger *zap.Logger, opts ...refresh.Option) *app {
	store := credstore.New(cfg.StorePath)
	client := hrportal.NewClient(hrportal.Config{
		BaseURL:    cfg.BaseURL,
		CustomerID: cfg.CustomerID,
	}, &http.Client{Timeout: cfg.HTTPTimeout}, logger.Named("portal"))

	return &app{
		cfg:       cfg,
		store:     store,
		recorder:  capture.NewRecorder(store, cfg.CaptureHosts, logger.Named("capture")),
		refresher: refresh.New(store, client, logger.Named("refresh"), opts...),
		logger:    logger,
		now:       time.Now,
		pick:      worktime.RandomComment,
	}
}

func (a *app) summary() worktime.Summary {
	st := a.refresher.State()
	return worktime.Summarize(st.Snapshot, a.cfg.TargetWorkday, a.now(), a.pick)
}

// watch refreshes whenever the capture side stores new credentials, until
// ctx is cancelled.
func (a *app) watch(ctx context.Context, onChange func()) {
	err := a.store.Watch(ctx, credstore.DefaultDebounce, func() {
		a.logger.Info("captured credentials changed", zap.String("path", a.store.Path()))
		onChange()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn("credential watcher stopped", zap.Error(err))
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile string
		verbose    bool
		port       int
		tui        bool
		watch      bool
		logger     *zap.Logger
	)

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		return config.Load(configFile, cmd.Flags())
	}
	loadApp := func(cmd *cobra.Command) (*app, error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		return newApp(cfg, logger), nil
	}

	cmd := &cobra.Command{
		Use:   "hrclock",
		Short: "Today's worked hours, breaks and clock-out time from the HR portal",
		Long: `hrclock replays the Authorization header captured from the HR portal
against its REST API and shows today's worked time, break time, net worked
time and when you can clock out.

Without flags it fetches once and prints the summary. --port serves the same
summary as a web page (with a capture endpoint for a browser hook), --tui
opens an interactive view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logPath := ""
			if tui {
				dir, err := config.Dir()
				if err != nil {
					return err
				}
				logPath = filepath.Join(dir, "hrclock.log")
			}
			var err error
			logger, err = newLogger(verbose, logPath)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 && tui {
				return fmt.Errorf("--port and --tui cannot be combined")
			}
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			switch {
			case port > 0:
				printListenAddrs(cmd.OutOrStdout(), a.cfg.ListenAddr, port)
				return serveWeb(ctx, a, net.JoinHostPort(a.cfg.ListenAddr, fmt.Sprint(port)), watch)
			case tui:
				return runTUI(ctx, a, watch)
			default:
				return runText(ctx, a, cmd.OutOrStdout(), watch)
			}
		},
	}

	cmd.Version = appVersion
	cmd.SetVersionTemplate("hrclock v{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/hrclock/hrclock.yml)")
	pf.BoolVar(&verbose, "verbose", false, "Debug logging")
	pf.String("target-workday", "", "Net work time that makes a full day, HH:MM:SS (default 08:30:00)")
	pf.String("base-url", "", "HR portal API base URL")
	pf.String("customer-id", "", "HR portal customer id")
	pf.String("store-path", "", "Where captured credentials are stored")
	pf.String("http-timeout", "", "Timeout for portal requests, e.g. 30s (default none)")

	cmd.Flags().IntVar(&port, "port", 0, "Run web UI on this port (e.g. 8484)")
	cmd.Flags().String("listen-addr", "", "Address the web UI binds to (default 127.0.0.1)")
	cmd.Flags().BoolVar(&tui, "tui", false, "Interactive terminal view")
	cmd.Flags().BoolVar(&watch, "watch", false, "Refresh whenever new credentials are captured")

	cmd.AddCommand(newCalcCmd(loadConfig), newCaptureCmd(loadApp))
	return cmd
}

// newCalcCmd takes the workday target from --target-workday or the config
// file.
func newCalcCmd(loadConfig func(*cobra.Command) (*config.Config, error)) *cobra.Command {
	var workedStr, breakStr, nowStr string

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute net time and clock-out from given values, without the portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			worked, err := worktime.ParseDuration(workedStr)
			if err != nil {
				return fmt.Errorf("invalid --worked: %w", err)
			}
			brk, err := worktime.ParseDuration(breakStr)
			if err != nil {
				return fmt.Errorf("invalid --break: %w", err)
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			now := time.Now()
			if strings.TrimSpace(nowStr) != "" {
				if now, err = worktime.ParseClock(nowStr, now); err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
			}

			snap := worktime.Snapshot{Worked: worked, HasWorked: true, Break: brk, HasBreak: true}
			printSummary(cmd.OutOrStdout(), worktime.Summarize(snap, cfg.TargetWorkday, now, worktime.RandomComment), refresh.State{Snapshot: snap})
			return nil
		},
	}
	cmd.Flags().StringVar(&workedStr, "worked", "", "Total worked time HH:MM:SS")
	cmd.Flags().StringVar(&breakStr, "break", "00:00:00", "Total break time HH:MM:SS")
	cmd.Flags().StringVar(&nowStr, "now", "", "Current time HH:MM (default: the clock)")
	_ = cmd.MarkFlagRequired("worked")
	return cmd
}

func newCaptureCmd(loadApp func(*cobra.Command) (*app, error)) *cobra.Command {
	var urlStr, authorization string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Store a portal request URL and its Authorization header",
		Long: `Stores the URL of a request the HR portal made and the Authorization
header it carried, as a browser hook would. Only portal hosts are accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if err := a.recorder.Observe(urlStr, authorization); err != nil {
				return err
			}
			if exp, err := hrportal.TokenExpiry(authorization); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Stored. Token expires %s\n", exp.Local().Format(time.RFC1123))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stored.")
			return nil
		},
	}
	cmd.Flags().StringVar(&urlStr, "url", "", "Portal request URL (must contain employee/<id>/)")
	cmd.Flags().StringVar(&authorization, "authorization", "", "Authorization header value, e.g. \"Bearer eyJ...\"")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("authorization")
	return cmd
}

func newLogger(verbose bool, path string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

/* ---------------- text ---------------- */

func runText(ctx context.Context, a *app, w io.Writer, watch bool) error {
	err := a.refresher.Refresh(ctx)
	printSummary(w, a.summary(), a.refresher.State())
	if !watch {
		return mapRefreshError(err)
	}

	a.watch(ctx, func() {
		if err := a.refresher.Refresh(ctx); err == nil {
			printSummary(w, a.summary(), a.refresher.State())
		}
	})
	return nil
}

// mapRefreshError adds a hint to the errors a user can act on.
func mapRefreshError(err error) error {
	var fe *hrportal.FetchError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, credstore.ErrNotCaptured):
		return fmt.Errorf("%w (open the HR portal with the browser hook installed, or run 'hrclock capture')", err)
	case errors.Is(err, hrportal.ErrMissingIdentifier):
		return fmt.Errorf("%w (capture a request made from your employee pages)", err)
	case errors.As(err, &fe) && (fe.Status == http.StatusUnauthorized || fe.Status == http.StatusForbidden):
		return fmt.Errorf("%w (the captured token was rejected; reload the portal to capture a fresh one)", err)
	}
	return err
}

func printSummary(w io.Writer, sum worktime.Summary, st refresh.State) {
	fmt.Fprintf(w, "Break Hours:      %s\n", sum.Break)
	fmt.Fprintf(w, "Total Work Hours: %s\n", sum.Worked)
	fmt.Fprintf(w, "Net Work Hours:   %s\n", sum.Net)
	fmt.Fprintf(w, "Clock Out:        %s\n", sum.ClockOut)
	if sum.Comment != "" {
		fmt.Fprintf(w, "\n%s\n", sum.Comment)
	}
	if !st.LastSuccess.IsZero() {
		fmt.Fprintf(w, "\nUpdated %s\n", st.LastSuccess.Format("15:04:05"))
	}
}

func printListenAddrs(w io.Writer, listenAddr string, port int) {
	fmt.Fprintln(w, "Listening on:")
	if listenAddr != "" && listenAddr != "0.0.0.0" && listenAddr != "::" {
		fmt.Fprintf(w, "  http://%s/\n\n", net.JoinHostPort(listenAddr, fmt.Sprint(port)))
		return
	}
	fmt.Fprintf(w, "  http://127.0.0.1:%d/\n", port)

	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil || ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}
			fmt.Fprintf(w, "  http://%s:%d/\n", ip.String(), port)
		}
	}
	fmt.Fprintln(w)
}
