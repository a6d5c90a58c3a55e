package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/modoterra/catlog/internal/buildinfo"
	"github.com/modoterra/catlog/pkg/cache"
	"github.com/modoterra/catlog/pkg/config"
	"github.com/modoterra/catlog/pkg/core"
	"github.com/modoterra/catlog/pkg/dispatch"
	"github.com/modoterra/catlog/pkg/metrics"
	"github.com/modoterra/catlog/pkg/notify"
	"github.com/modoterra/catlog/pkg/providers/exec"
	"github.com/modoterra/catlog/pkg/providers/logs/filetail"
	"github.com/modoterra/catlog/pkg/providers/logs/pipe"
	"github.com/modoterra/catlog/pkg/transport/uds"
)

var errApp = errors.New("application error")

// exitError carries the exit status of a command run with --exec.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("command exited with status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := fang.Execute(ctx, newRootCmd(), fang.WithVersion(buildinfo.Version))
	stop()
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(1)
	}
}

// options holds the raw flag values. They override the loaded config only
// when set on the command line.
type options struct {
	configPath   string
	follow       string
	exec         string
	pollInterval time.Duration
	errorsOnly   bool
	all          bool
	status       string
	noImage      bool
	imageURL     string
	socket       string
	metricsAddr  string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "catlog [-f FILE | -e COMMAND]",
		Short: "Watch log output for HTTP status codes",
		Long: "catlog echoes every line read from stdin, a followed file or a command, " +
			"and announces HTTP status codes found in them with a cat from http.cat.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file path (default: catlog/catlog.yaml in the XDG config dirs)")

	flags := root.Flags()
	flags.StringVarP(&opts.follow, "follow", "f", "", "follow a log file")
	flags.StringVarP(&opts.exec, "exec", "e", "", "run a shell command and read its output")
	flags.DurationVar(&opts.pollInterval, "poll-interval", filetail.DefaultPollInterval, "file poll interval")
	flags.BoolVar(&opts.errorsOnly, "errors-only", true, "notify only for 4xx and 5xx codes")
	flags.BoolVar(&opts.all, "all", false, "notify for every detected code")
	flags.StringVar(&opts.status, "status", "", "comma-separated status codes to notify for")
	flags.BoolVar(&opts.noImage, "no-image", false, "do not fetch images")
	flags.StringVar(&opts.imageURL, "image-url", notify.DefaultBaseURL, "image service base URL")
	flags.StringVar(&opts.socket, "socket", "", "publish detections on this unix socket")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.MarkFlagsMutuallyExclusive("follow", "exec")

	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

func loadConfig(opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.Find()
	}
	return config.Load(path)
}

// applyFlags copies explicitly set flags onto cfg and returns any --status
// tokens that were not valid codes.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *options) []string {
	changed := cmd.Flags().Changed

	if changed("follow") {
		cfg.Follow = opts.follow
		cfg.Exec = ""
	}
	if changed("exec") {
		cfg.Exec = opts.exec
		cfg.Follow = ""
	}
	if changed("poll-interval") {
		cfg.PollInterval = opts.pollInterval
	}
	if changed("errors-only") {
		cfg.Filter.ErrorsOnly = opts.errorsOnly
	}
	if changed("all") {
		cfg.Filter.All = opts.all
	}
	if changed("no-image") {
		cfg.Image.Enabled = !opts.noImage
	}
	if changed("image-url") {
		cfg.Image.BaseURL = opts.imageURL
	}
	if changed("socket") {
		cfg.Socket = opts.socket
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}

	var invalid []string
	if changed("status") {
		var codes []core.StatusCode
		codes, invalid = core.ParseCodes(opts.status)
		cfg.Filter.Status = make([]int, 0, len(codes))
		for _, code := range codes {
			cfg.Filter.Status = append(cfg.Filter.Status, int(code))
		}
	}
	return invalid
}

func newLogger(cmd *cobra.Command, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})), nil
}

// run is the main entry point of catlog.
func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(opts)
	if err != nil {
		return errors.Join(err, errApp)
	}
	invalid := applyFlags(cmd, cfg, opts)
	if errs := config.Validate(cfg); len(errs) > 0 {
		return errors.Join(append(errs, errApp)...)
	}

	logger, err := newLogger(cmd, cfg.LogLevel)
	if err != nil {
		return errors.Join(err, errApp)
	}
	for _, token := range invalid {
		logger.Warn("ignoring invalid status code", "value", token)
	}

	src, sourceID, err := openSource(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	out := cmd.OutOrStdout()
	notifiers := notify.Chain{notify.NewBanner(out)}
	if cfg.Image.Enabled {
		notifiers = append(notifiers, notify.NewThrottle(newCatNotifier(cfg, out, logger), cfg.Notify.Rate, cfg.Notify.Burst))
	}

	var srv *uds.Server
	if cfg.Socket != "" {
		srv = uds.NewServer(cfg.Socket, logger)
		notifiers = append(notifiers, notify.NewBroadcast(srv))
	}

	m := metrics.New(prometheus.NewRegistry())
	echo := bufio.NewWriter(out)
	dispatcher := dispatch.New(echo, cfg.FilterConfig(), notifiers,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(m),
		dispatch.WithNotifyTimeout(cfg.Notify.Timeout))

	if srv != nil {
		dispatcher.RegisterHandlers(srv, sourceID)
		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.Start(ctx) }()
		select {
		case <-srv.Ready():
		case err := <-serveErr:
			return errors.Join(err, errApp)
		}
		defer srv.Shutdown()
	}

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, m, logger)
		defer stopMetrics()
	}

	logger.Debug("reading", "source", sourceID, "filter", string(cfg.FilterConfig().Mode()))
	if err := dispatcher.Run(ctx, src); err != nil {
		return err
	}

	stats := dispatcher.Stats()
	logger.Debug("done", "lines", stats.Lines, "detections", stats.Detections,
		"notifications", stats.Notifications, "failures", stats.Failures)

	if tailer, ok := src.(*exec.Tailer); ok && ctx.Err() == nil {
		if code := tailer.ExitCode(); code > 0 {
			return &exitError{code: code}
		}
	}
	return nil
}

// openSource builds the line source selected by cfg.
func openSource(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (core.LineSource, string, error) {
	switch cfg.Mode() {
	case core.KindFile:
		t, err := filetail.Open(cfg.Follow,
			filetail.WithPollInterval(cfg.PollInterval),
			filetail.WithLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return t, t.ID(), nil
	case core.KindExec:
		t, err := exec.Start(cfg.Exec,
			exec.WithShell(cfg.Shell),
			exec.WithLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return t, t.ID(), nil
	default:
		s := pipe.New(cmd.InOrStdin(), "-", logger)
		return s, s.ID(), nil
	}
}

// newCatNotifier fetches pictures through the filesystem cache and prints a
// summary of each one. A cache that cannot be created is skipped.
func newCatNotifier(cfg *config.Config, out io.Writer, logger *slog.Logger) notify.Notifier {
	var imageCache cache.Cache
	fsCache, err := cache.New(cfg.Image.CacheDir)
	if err != nil {
		logger.Warn("image cache disabled", "err", err)
	} else {
		imageCache = fsCache
	}

	httpClient := &http.Client{Timeout: cfg.Image.Timeout}
	fetcher := notify.NewHTTPFetcher(httpClient, cfg.Image.BaseURL, imageCache, logger)
	return notify.NewCat(fetcher, notify.NewSummaryRenderer(out, hostOf(cfg.Image.BaseURL)))
}

// hostOf names the image source in summaries, falling back to the raw URL.
func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return baseURL
	}
	return u.Host
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "err", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("metrics shutdown", "err", err)
		}
	}
}
