package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"qdreviews/pkg/auth"
	"qdreviews/pkg/browser"
	"qdreviews/pkg/config"
	"qdreviews/pkg/logger"
	"qdreviews/pkg/metrics"
	"qdreviews/pkg/qidian"
	"qdreviews/pkg/scraper"
	"qdreviews/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	debug         bool
	outputDir     string
	notifications bool
)

// rootCmd scrapes one book when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "qdreviews [bookId]",
	Short: "Collect the paragraph reviews of a Qidian book into CSV files",
	Long: `qdreviews walks the chapter list of a Qidian book and saves every
paragraph review (画线评) it can reach, one CSV file per chapter plus a
merged file for the whole book.

Credentials are taken from a browser session. When the site asks for a
verification a Chrome window opens; complete the check there and the run
continues on its own. Completed chapters are skipped on the next run.`,
	Example: `  # Scrape the default book
  qdreviews

  # Scrape a specific book with debug output
  qdreviews 1010868264 --debug

  # Write output somewhere else
  qdreviews 1010868264 -o ./reviews`,
	Args:    cobra.MaximumNArgs(1),
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	RunE:    runScrape,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file (default: $QDREVIEWS_CONFIG, else the first of "+strings.Join(config.SearchLocations(), ", ")+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "log request and response details")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default from config)")
	rootCmd.Flags().BoolVar(&notifications, "notifications", true, "enable desktop notifications")

	rootCmd.SetVersionTemplate(`qdreviews {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func flagValues() map[string]interface{} {
	return map[string]interface{}{
		"debug":     debug,
		"output":    outputDir,
		"log-level": logLevel,
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	bookID := config.DefaultBookID
	if len(args) == 1 {
		bookID = args[0]
	}

	cfg, err := config.Load(configFile, flagValues())
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := ui.NewConsole()
	var notifier *ui.Notifier
	if notifications {
		notifier = ui.NewNotifier()
	}
	m := metrics.New(bookID)

	launcher := browser.NewChromeLauncher(cfg.Browser.ExecPath, cfg.Qidian.UserAgent, cfg.Browser.NavigateTimeout, log)
	acquirer := auth.NewAcquirer(launcher, cfg.Qidian.BaseURL, cfg.Browser, log)
	acquirer.Guide = console.Writer()
	acquirer.OnWait = console.WaitProgress
	acquirer.OnVisible = notifier.VerificationRequired

	client := qidian.NewClient(bookID, acquirer, cfg.Qidian, cfg.Request.Timeout, log)
	client.OnRefresh = m.RefreshesTotal.Inc
	client.OnResponse = m.ObserveRequest

	deps := scraper.Deps{
		Client:  client,
		Console: console,
		Metrics: m,
		Logger:  log,
	}
	if cfg.Content.CaptureOriginalText {
		var fallback browser.Launcher
		if cfg.Content.BrowserFallback {
			fallback = launcher
		}
		deps.Texts = qidian.NewContentFetcher(client, fallback, cfg.Browser.HeadlessSettle, log)
	}

	report, err := scraper.New(cfg, deps).Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			console.PrintWarning("interrupted; completed chapters are kept and will be skipped next time")
		}
		return err
	}

	log.InfoWithFields("run finished", map[string]interface{}{
		"fetched":    report.Count(scraper.StateFetched),
		"errored":    report.Count(scraper.StateErrored),
		"comments":   report.Comments,
		"aggregated": report.AggregateRows,
	})
	notifier.RunFinished(bookID, report.AggregateRows)
	return nil
}
