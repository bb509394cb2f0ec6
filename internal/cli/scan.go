package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/0x6d61/sqlif/internal/config"
	"github.com/0x6d61/sqlif/internal/detector"
	"github.com/0x6d61/sqlif/internal/engine"
	"github.com/0x6d61/sqlif/internal/payload"
	"github.com/0x6d61/sqlif/internal/report"
	"github.com/0x6d61/sqlif/internal/search"
	"github.com/0x6d61/sqlif/internal/session"
	"github.com/0x6d61/sqlif/internal/tamper"
	"github.com/0x6d61/sqlif/internal/transport"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan targets for error-based SQL injection",
		Long: `Scan fetches every target, extracts its forms, injects each catalog
string into every URL parameter and form field, and reports the requests whose
responses contain a database error message.`,
		RunE: runScan,
	}
}

// runScan is the main scan command handler. It wires up the pipeline:
// config → transport → search → scanner → report → session.
func runScan(cmd *cobra.Command, args []string) error {
	noColor, _ := cmd.Flags().GetBool("no-color")
	out := newConsole(cmd.OutOrStdout(), noColor)
	out.banner()

	// ------------------------------------------------------------------ //
	// 1. Configuration: defaults ← config file ← explicit flags
	// ------------------------------------------------------------------ //
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Output.NoColor {
		color.NoColor = true
	}
	if cfg.Search.Query != "" && cfg.Search.Engine == "" {
		return fmt.Errorf("no search engine provided (use --engine, one of %v)", search.Supported())
	}
	reporter, err := report.New(cfg.Output.Format)
	if err != nil {
		return err
	}
	chain, err := tamper.Parse(cfg.Scanner.Tamper)
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Output.Verbose)

	// ------------------------------------------------------------------ //
	// 2. Transport client, shared by search and scan
	// ------------------------------------------------------------------ //
	client, err := transport.NewClient(cfg.ClientOptions())
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}
	defer client.Close()

	// CTRL+C cancels outstanding requests; results so far are still written.
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	// ------------------------------------------------------------------ //
	// 3. Targets
	// ------------------------------------------------------------------ //
	urls := append([]string(nil), cfg.Targets...)
	if cfg.Search.Query != "" {
		urls = append(urls, discover(ctx, out, search.NewSearcher(client, search.WithLogger(logger)), cfg)...)
	}
	if len(urls) == 0 {
		out.Infof("Zero targets to scan")
		return nil
	}
	targets := engine.NewTargets(urls)

	// ------------------------------------------------------------------ //
	// 4. Scan
	// ------------------------------------------------------------------ //
	var bar *progressbar.ProgressBar
	opts := []engine.ScannerOption{
		engine.WithGenerator(payload.NewGenerator(payload.WithTamper(chain))),
		engine.WithLogger(logger),
	}
	if cfg.Scanner.AllDBMS {
		opts = append(opts, engine.WithDetector(detector.New(detector.AllSignatures()...)))
	}
	if showProgressBar(cmd.OutOrStdout(), cfg.Output.Verbose) {
		opts = append(opts, engine.WithDispatchHooks(
			func(total int) {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription(prefix+" Sending payloads"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			},
			func() { bar.Add(1) }, //nolint:errcheck
		))
	}

	scanner := engine.NewScanner(client, &engine.ScanConfig{
		Threads: cfg.Scanner.Threads,
		Verbose: cfg.Output.Verbose,
	}, opts...)
	scanner.SetProgressCallback(func(msg string) {
		out.Infof("%s", msg)
	})

	out.Infof("Scanning %d target(s)...", len(targets))
	summary, err := scanner.Scan(ctx, targets)
	if bar != nil {
		bar.Finish() //nolint:errcheck
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scan error: %w", err)
		}
		out.Warnf("Scan interrupted, saving partial results")
	}

	findings := engine.Findings(targets)
	for _, f := range findings {
		out.Alertf("DBMS error detected (%s): %s", f.DBMS, describe(f))
	}
	stats := client.Stats()
	out.Infof("%d finding(s), %d request(s), %d failed, %.1fs",
		len(findings), stats.TotalRequests, summary.Failed, summary.Duration().Seconds())

	// ------------------------------------------------------------------ //
	// 5. Output file
	// ------------------------------------------------------------------ //
	outputPath := cfg.Output.File
	if outputPath == "" {
		outputPath = report.DefaultFileName(time.Now(), reporter.Format())
	}
	out.Infof("Saving output to %s", outputPath)
	if err := report.WriteFile(context.Background(), reporter, outputPath, findings, summary); err != nil {
		out.Warnf("Failed to write output file: %v", err)
	}

	// ------------------------------------------------------------------ //
	// 6. Session history (optional)
	// ------------------------------------------------------------------ //
	if cfg.Session.Path != "" {
		if id, err := saveRun(cfg, targets, summary); err != nil {
			out.Warnf("Failed to save run: %v", err)
		} else {
			out.Goodf("Run saved as %s", id)
		}
	}

	return nil
}

// discover runs the configured search and returns the result links.
// Search problems are reported and never stop the scan of direct targets.
func discover(ctx context.Context, out *console, searcher *search.Searcher, cfg *config.Config) []string {
	engineName := cfg.Search.Engine
	if !search.IsSupported(engineName) {
		out.Warnf("%s is not supported (supported: %v)", engineName, search.Supported())
		return nil
	}

	out.Infof("Scanning %d page(s) of %s search results...", cfg.Search.Pages, engineName)
	res, err := searcher.Search(ctx, engineName, cfg.Search.Query, cfg.Search.Pages)
	if err != nil {
		out.Warnf("Search failed: %v", err)
	}
	if res.Blocked {
		out.Warnf("You have likely been blocked by %s. Use a different search engine (--engine), or a proxy", engineName)
	}
	out.Infof("Found %d URL(s)", len(res.URLs))
	return res.URLs
}

func describe(f engine.Finding) string {
	if f.Data != "" {
		return fmt.Sprintf("POST %s [%s]", f.URL, f.Data)
	}
	return f.URL
}

func saveRun(cfg *config.Config, targets []*engine.Target, summary *engine.Summary) (string, error) {
	store, err := session.NewSQLiteStore(cfg.Session.Path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	run := session.NewRun(targets, summary)
	run.Engine = cfg.Search.Engine
	run.Query = cfg.Search.Query
	if err := store.Save(context.Background(), run); err != nil {
		return "", err
	}
	return run.ID, nil
}

// showProgressBar reports whether payload dispatch should draw a progress
// bar: only on a terminal, and not when debug logs are interleaved.
func showProgressBar(w io.Writer, verbose int) bool {
	if verbose >= 3 {
		return false
	}
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// loadConfig reads --config and lets explicitly set flags override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Targets, _ = flags.GetStringArray("target")
	}
	if flags.Changed("query") {
		cfg.Search.Query, _ = flags.GetString("query")
	}
	if flags.Changed("engine") {
		cfg.Search.Engine, _ = flags.GetString("engine")
	}
	if flags.Changed("pages") {
		cfg.Search.Pages, _ = flags.GetInt("pages")
	}
	if flags.Changed("timeout") {
		cfg.Scanner.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("user-agent") {
		cfg.Scanner.UserAgent, _ = flags.GetString("user-agent")
	}
	if flags.Changed("random-agent") {
		cfg.Scanner.RandomAgent, _ = flags.GetBool("random-agent")
	}
	if flags.Changed("proxy") {
		cfg.Scanner.Proxy, _ = flags.GetString("proxy")
	}
	if flags.Changed("rate") {
		cfg.Scanner.Rate, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("threads") {
		cfg.Scanner.Threads, _ = flags.GetInt("threads")
	}
	if flags.Changed("tamper") {
		cfg.Scanner.Tamper, _ = flags.GetStringSlice("tamper")
	}
	if flags.Changed("all-dbms") {
		cfg.Scanner.AllDBMS, _ = flags.GetBool("all-dbms")
	}
	if flags.Changed("output-file") {
		cfg.Output.File, _ = flags.GetString("output-file")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("verbose") {
		cfg.Output.Verbose, _ = flags.GetInt("verbose")
	}
	if flags.Changed("no-color") {
		cfg.Output.NoColor, _ = flags.GetBool("no-color")
	}
	if flags.Changed("session") {
		cfg.Session.Path, _ = flags.GetString("session")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
