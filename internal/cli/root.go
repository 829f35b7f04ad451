package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/foofork/riptide/internal/build"
	"github.com/foofork/riptide/internal/config"
	"github.com/foofork/riptide/internal/metadata"
	"github.com/foofork/riptide/internal/model"
	"github.com/foofork/riptide/internal/spider"
	"github.com/spf13/cobra"
)

var (
	cfgFile           string
	seedURLs          []string
	maxDepth          int
	concurrency       int
	outputDir         string
	dryRun            bool
	maxPages          int
	userAgent         string
	timeout           time.Duration
	baseDelay         time.Duration
	jitter            time.Duration
	randomSeed        int64
	allowedHosts      []string
	allowedPathPrefix []string
	strategy          string
	query             string
	respectRobots     bool
	devMode           bool
	extractMode       string
	probeFirstSPA     bool
)

// parseStringSliceToSet converts a string slice to a map[string]struct{} set
func parseStringSliceToSet(strings []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range strings {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// parseSeedURLs converts a string slice of URLs to []url.URL
func parseSeedURLs(urlStrings []string) ([]url.URL, error) {
	if len(urlStrings) == 0 {
		return nil, fmt.Errorf("seed URLs cannot be empty")
	}

	var urls []url.URL
	for _, urlStr := range urlStrings {
		parsedURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing seed URL %s: %w", urlStr, err)
		}
		urls = append(urls, *parsedURL)
	}
	return urls, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "riptide",
	Short:   "A crawl-render-extract pipeline for web content.",
	Version: build.FullVersion(),
	Long: `riptide crawls websites through a priority-aware frontier, selects
the cheapest extraction engine that can handle each page (fast DOM walk,
sandboxed WASM extractor, or headless browser), and emits clean extracted
documents plus optional Markdown artifacts.

Crawls are polite by default (robots.txt, per-host rate limits, circuit
breakers) and deterministic enough to rerun against the same site.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Check if seed URLs are provided
		if len(seedURLs) == 0 {
			fmt.Fprintf(os.Stderr, "Error: --seed-url is required. Please provide at least one seed URL to start crawling.\n")
			cmd.Usage()
			os.Exit(1)
		}

		// Parse seed URLs
		parsedURLs, err := parseSeedURLs(seedURLs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}

		// Build config using initConfig with parsed seed URLs
		cfg := InitConfig(parsedURLs)

		// Display configuration for verification
		fmt.Printf("Configuration initialized successfully\n")
		if len(cfg.SeedURLs()) > 0 {
			var urls []string
			for _, u := range cfg.SeedURLs() {
				urls = append(urls, u.String())
			}
			fmt.Printf("Seed URLs: %s\n", strings.Join(urls, ", "))
		}
		if len(cfg.AllowedHosts()) > 0 {
			var hosts []string
			for host := range cfg.AllowedHosts() {
				hosts = append(hosts, host)
			}
			fmt.Printf("Allowed Hosts: %s\n", strings.Join(hosts, ", "))
		}
		if len(cfg.AllowedPathPrefix()) > 0 {
			fmt.Printf("Allowed Path Prefixes: %s\n", strings.Join(cfg.AllowedPathPrefix(), ", "))
		}
		fmt.Printf("Max Depth: %d\n", cfg.MaxDepth())
		fmt.Printf("Max Pages: %d\n", cfg.MaxPages())
		fmt.Printf("Concurrency: %d\n", cfg.Concurrency())
		fmt.Printf("Base Delay: %v\n", cfg.BaseDelay())
		fmt.Printf("Jitter: %v\n", cfg.Jitter())
		fmt.Printf("Random Seed: %d\n", cfg.RandomSeed())
		fmt.Printf("Timeout: %v\n", cfg.Timeout())
		fmt.Printf("User Agent: %s\n", cfg.UserAgent())
		fmt.Printf("Output Directory: %s\n", cfg.OutputDir())
		fmt.Printf("Dry Run: %t\n", cfg.DryRun())

		if err := runCrawl(cmd.Context(), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	},
}

// runCrawl translates a resolved config.Config into a model.CrawlSpec and
// spider.Config, runs the crawl to completion and prints the resulting
// summary. It is the only place this binary invokes the crawl engine.
func runCrawl(ctx context.Context, cfg config.Config) error {
	recorder := metadata.NewStderrRecorder()

	spiderCfg := spider.Config{
		UserAgent:        cfg.UserAgent(),
		WorkerCount:      cfg.Concurrency(),
		RetryMaxAttempts: cfg.MaxAttempt(),
		RetryBaseDelay:   cfg.BaseDelay(),
		RetryJitter:      cfg.Jitter(),
		RandomSeed:       cfg.RandomSeed(),
	}
	if !cfg.DryRun() {
		spiderCfg.OutputDir = cfg.OutputDir()
	}

	sp, err := spider.New(spiderCfg, recorder, recorder)
	if err != nil {
		return fmt.Errorf("failed to initialize spider: %w", err)
	}
	defer sp.Close(ctx)

	summary, docs := sp.Crawl(ctx, buildCrawlSpec(cfg))

	fmt.Printf("\nCrawl finished: %d pages (%d failed) in %.1fs, stop reason: %s\n",
		summary.PagesCrawled, summary.PagesFailed, summary.DurationSecs, summary.StopReason)
	fmt.Printf("Extracted %d documents across %d domain(s)\n", len(docs), len(summary.Domains))

	return nil
}

// buildCrawlSpec translates the CLI/file config into the canonical
// model.CrawlSpec the Spider accepts.
func buildCrawlSpec(cfg config.Config) model.CrawlSpec {
	return model.CrawlSpec{
		Seeds:    cfg.SeedURLs(),
		Strategy: parseStrategy(cfg.Strategy()),
		Budget: model.Budget{
			MaxPages:   cfg.MaxPages(),
			MaxDepth:   cfg.MaxDepth(),
			MaxBytes:   cfg.MaxBytes(),
			MaxElapsed: cfg.MaxElapsed(),
		},
		HostRules: model.HostRules{
			AllowedHosts:      cfg.AllowedHosts(),
			AllowedPathPrefix: cfg.AllowedPathPrefix(),
		},
		ExtractMode:   parseExtractMode(cfg.ExtractMode()),
		Query:         cfg.Query(),
		RespectRobots: cfg.RespectRobots() && !cfg.DevMode(),
		DevMode:       cfg.DevMode(),
		Flags: model.EngineFlags{
			UseVisibleTextDensity: cfg.UseVisibleTextDensity(),
			DetectPlaceholders:    cfg.DetectPlaceholders(),
			ProbeFirstSPA:         cfg.ProbeFirstSPA(),
		},
	}
}

func parseStrategy(s string) model.Strategy {
	switch strings.ToLower(s) {
	case "dfs":
		return model.StrategyDFS
	case "bestfirst", "best-first":
		return model.StrategyBestFirst
	default:
		return model.StrategyBFS
	}
}

func parseExtractMode(m string) model.ExtractMode {
	switch strings.ToLower(m) {
	case "full":
		return model.ExtractModeFull
	case "metadata":
		return model.ExtractModeMetadata
	default:
		return model.ExtractModeArticle
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Here you will define your flags and configuration settings.
	// Cobra supports persistent flags, which, if defined here,
	// will be available to all subcommands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringArrayVar(&seedURLs, "seed-url", []string{}, "one or more starting URLs (can be repeated)")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 5, "maximum link depth from seed URL")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 3, "number of concurrent fetch workers")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "output", "root output directory for crawled content")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "crawl without writing output")
	rootCmd.PersistentFlags().IntVar(&maxPages, "max-pages", 0, "maximum number of pages to fetch (0 for unlimited)")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&baseDelay, "base-delay", 0, "base delay stored in the retry parameters (retry waits come from the backoff settings)")
	rootCmd.PersistentFlags().DurationVar(&jitter, "jitter", 0, "random jitter added to base delay")
	rootCmd.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "seed for random number generation (0 for current time)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedHosts, "allowed-host", []string{}, "explicit hostname allowlist (defaults to seed host)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedPathPrefix, "allowed-path-prefix", []string{}, "restrict crawl to paths like `/docs`, `/guide`")
	rootCmd.PersistentFlags().StringVar(&strategy, "strategy", "", "frontier dequeue order: bfs, dfs or bestfirst")
	rootCmd.PersistentFlags().StringVar(&query, "query", "", "ranking query used by the bestfirst strategy")
	rootCmd.PersistentFlags().BoolVar(&respectRobots, "respect-robots", true, "honor robots.txt")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev-mode", false, "bypass robots.txt and other politeness guards for local testing")
	rootCmd.PersistentFlags().StringVar(&extractMode, "extract-mode", "", "WASM extraction contract: article, full or metadata")
	rootCmd.PersistentFlags().BoolVar(&probeFirstSPA, "probe-first-spa", false, "probe candidate single-page apps with the cheap engine before escalating")
}

// InitConfig reads in the config file if set, otherwise the CLI flags.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
func InitConfig(seedUrls []url.URL) config.Config {
	cfg, err := InitConfigWithError(seedUrls)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitConfigWithError reads in the config file if set, otherwise the CLI flags, returning any errors.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
// This makes it easier to test error cases.
func InitConfigWithError(seedUrls []url.URL) (config.Config, error) {
	if len(seedUrls) == 0 {
		return config.Config{}, fmt.Errorf("%w: seedUrls cannot be empty", config.ErrInvalidConfig)
	}

	if cfgFile != "" {
		fmt.Printf("Initializing config from file: %s\n", cfgFile)
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	// Build config from CLI flags using the With... functions with method chaining
	fmt.Println("No config file specified. Using default and CLI flag values")

	// Start with default config using provided seed URLs and apply overrides using method chaining
	configBuilder := config.WithDefault(seedUrls)

	// Override with CLI flag values where provided
	if maxDepth > 0 {
		configBuilder = configBuilder.WithMaxDepth(maxDepth)
	}

	if concurrency > 0 {
		configBuilder = configBuilder.WithConcurrency(concurrency)
	}

	if outputDir != "" && outputDir != "output" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}

	if dryRun {
		configBuilder = configBuilder.WithDryRun(dryRun)
	}

	if maxPages > 0 {
		configBuilder = configBuilder.WithMaxPages(maxPages)
	}

	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}

	if baseDelay > 0 {
		configBuilder = configBuilder.WithBaseDelay(baseDelay)
	}

	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}

	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}

	if len(allowedHosts) > 0 {
		configBuilder = configBuilder.WithAllowedHosts(parseStringSliceToSet(allowedHosts))
	}

	if len(allowedPathPrefix) > 0 {
		configBuilder = configBuilder.WithAllowedPathPrefix(allowedPathPrefix)
	}

	if strategy != "" {
		configBuilder = configBuilder.WithStrategy(strategy)
	}

	if query != "" {
		configBuilder = configBuilder.WithQuery(query)
	}

	configBuilder = configBuilder.WithRespectRobots(respectRobots)

	if devMode {
		configBuilder = configBuilder.WithDevMode(devMode)
	}

	if extractMode != "" {
		configBuilder = configBuilder.WithExtractMode(extractMode)
	}

	if probeFirstSPA {
		configBuilder = configBuilder.WithProbeFirstSPA(probeFirstSPA)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func ResetFlags() {
	cfgFile = ""
	seedURLs = []string{}
	maxDepth = 0
	concurrency = 0
	outputDir = ""
	dryRun = false
	maxPages = 0
	userAgent = ""
	timeout = 0
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	allowedHosts = []string{}
	allowedPathPrefix = []string{}
	strategy = ""
	query = ""
	respectRobots = true
	devMode = false
	extractMode = ""
	probeFirstSPA = false
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetSeedURLsForTest(urls []string) {
	seedURLs = urls
}

func SetMaxDepthForTest(depth int) {
	maxDepth = depth
}

func SetConcurrencyForTest(conc int) {
	concurrency = conc
}

func SetOutputDirForTest(dir string) {
	outputDir = dir
}

func SetDryRunForTest(dry bool) {
	dryRun = dry
}

func SetMaxPagesForTest(pages int) {
	maxPages = pages
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetBaseDelayForTest(delay time.Duration) {
	baseDelay = delay
}

func SetJitterForTest(j time.Duration) {
	jitter = j
}

func SetRandomSeedForTest(seed int64) {
	randomSeed = seed
}

func SetAllowedHostsForTest(hosts []string) {
	allowedHosts = hosts
}

func SetAllowedPathPrefixForTest(prefixes []string) {
	allowedPathPrefix = prefixes
}
