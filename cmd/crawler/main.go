package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ggpdev/ggstore-crawler/internal/browser"
	"github.com/ggpdev/ggstore-crawler/internal/config"
	"github.com/ggpdev/ggstore-crawler/internal/crawler"
	"github.com/ggpdev/ggstore-crawler/internal/downloader"
	"github.com/ggpdev/ggstore-crawler/internal/export"
	"github.com/ggpdev/ggstore-crawler/internal/ledger"
	"github.com/ggpdev/ggstore-crawler/internal/parser"
	"github.com/ggpdev/ggstore-crawler/internal/ratelimit"
	"github.com/ggpdev/ggstore-crawler/internal/storage"
	"github.com/ggpdev/ggstore-crawler/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	command := "crawl"
	args := os.Args[1:]
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "crawl":
		return runCrawl(cfg, args)
	case "status":
		return runStatus(cfg, args)
	case "errors":
		return runErrors(cfg, args)
	case "export":
		return runExport(cfg, args)
	default:
		log.Error("unknown command", "command", command)
		fmt.Fprintln(os.Stderr, "usage: crawler [crawl|status|errors|export] [flags]")
		return 1
	}
}

func runCrawl(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	outputDir := fs.String("o", cfg.Downloader.OutputDir, "Output directory for images")
	metadataFile := fs.String("m", cfg.Storage.MetadataFile, "Metadata file path")
	ledgerFile := fs.String("c", cfg.Storage.LedgerFile, "Ledger file path")
	noHeadless := fs.Bool("no-headless", false, "Show browser window")
	delay := fs.Duration("d", cfg.Crawler.PageDelay, "Delay between requests")
	noSkip := fs.Bool("no-skip", false, "Re-download existing products")
	incremental := fs.Bool("incremental", false, "Record this run as an incremental crawl")
	fs.Parse(args)

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	headless := cfg.Browser.Headless && !*noHeadless
	skipExisting := cfg.Crawler.SkipExisting && !*noSkip

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewMetadataStore(*metadataFile)
	if err != nil {
		log.Error("failed to open metadata store", "error", err)
		return 1
	}

	lm, err := ledger.NewManager(*ledgerFile)
	if err != nil {
		log.Error("failed to open ledger", "error", err)
		return 1
	}

	b, err := browser.New(&browser.Options{
		Headless:       headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      cfg.Browser.UserAgent,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		Locale:         cfg.Browser.Locale,
		TimezoneID:     cfg.Browser.TimezoneID,
	})
	if err != nil {
		log.Error("failed to start browser", "error", err)
		return 1
	}
	defer b.Close()

	dl := downloader.New(downloader.Options{
		OutputDir:     *outputDir,
		MaxConcurrent: cfg.Downloader.MaxConcurrent,
		SkipExisting:  skipExisting,
		Timeout:       cfg.Downloader.Timeout,
	})

	jobType := ledger.JobFullCrawl
	if *incremental {
		jobType = ledger.JobIncremental
	}

	opts := crawler.Options{
		BaseURL:            cfg.Crawler.BaseURL,
		MaxPages:           cfg.Crawler.MaxPages,
		CheckpointInterval: cfg.Crawler.CheckpointInterval,
		SkipExisting:       skipExisting,
		JobType:            jobType,
		JobConfig: ledger.JobConfig{
			Headless:               headless,
			Delay:                  *delay,
			MaxConcurrentDownloads: cfg.Downloader.MaxConcurrent,
			SkipExisting:           skipExisting,
			OutputDir:              *outputDir,
			MetadataFile:           *metadataFile,
		},
		Agent: "crawler-agent",
	}

	svc := crawler.New(b, parser.New(cfg.Crawler.BaseURL), dl, store, lm, ratelimit.New(*delay), opts)

	start := time.Now()
	result, err := svc.Run(ctx)
	if err != nil {
		log.Error("crawl failed", "error", err)
		return 1
	}

	fmt.Println("==================================================")
	fmt.Println("Crawl Complete!")
	fmt.Println("==================================================")
	fmt.Printf("Total Products: %d\n", result.TotalProducts)
	fmt.Printf("Total Images:   %d\n", result.TotalImages)
	fmt.Printf("Duration:       %s\n", time.Since(start).Round(time.Second))
	fmt.Printf("Output Dir:     %s\n", *outputDir)
	fmt.Printf("Metadata:       %s\n", *metadataFile)
	fmt.Printf("Ledger:         %s\n", *ledgerFile)
	fmt.Println("==================================================")

	return 0
}

func runStatus(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	ledgerFile := fs.String("c", cfg.Storage.LedgerFile, "Ledger file path")
	fs.Parse(args)

	lm, err := ledger.NewManager(*ledgerFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open ledger: %v\n", err)
		return 1
	}

	fmt.Print(lm.StatusText())
	return 0
}

func runErrors(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("errors", flag.ExitOnError)
	ledgerFile := fs.String("c", cfg.Storage.LedgerFile, "Ledger file path")
	limit := fs.Int("n", 10, "Number of errors to show")
	fs.Parse(args)

	lm, err := ledger.NewManager(*ledgerFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open ledger: %v\n", err)
		return 1
	}

	errs := lm.UnresolvedErrors()
	if len(errs) == 0 {
		fmt.Println("No unresolved errors.")
		return 0
	}

	fmt.Printf("=== Unresolved Errors (%d total) ===\n\n", len(errs))
	shown := errs
	if len(shown) > *limit {
		shown = shown[:*limit]
	}
	for _, e := range shown {
		fmt.Printf("[%s] %s\n", e.ID, e.Timestamp.Format(time.RFC3339))
		fmt.Printf("  Type: %s\n", e.Type)
		fmt.Printf("  Job: %s\n", e.JobID)
		if e.ProductID != "" {
			fmt.Printf("  Product: %s\n", e.ProductID)
		}
		if e.URL != "" {
			fmt.Printf("  URL: %s\n", e.URL)
		}
		fmt.Printf("  Message: %s\n\n", e.Message)
	}

	if len(errs) > *limit {
		fmt.Printf("... and %d more errors\n", len(errs)-*limit)
	}

	return 0
}

func runExport(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	metadataFile := fs.String("m", cfg.Storage.MetadataFile, "Metadata file path")
	outFile := fs.String("o", "data/products.csv", "CSV output path")
	fs.Parse(args)

	store, err := storage.NewMetadataStore(*metadataFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open metadata store: %v\n", err)
		return 1
	}

	result := store.Result()
	if err := export.WriteCSVFile(*outFile, &result); err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		return 1
	}

	fmt.Printf("Exported %d products to %s\n", result.TotalProducts, *outFile)
	return 0
}
