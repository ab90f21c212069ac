package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"time"

	"jp2rebin/pkg/config"
	"jp2rebin/pkg/rebin"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing jp2 slice images")
	factor := flag.Int("factor", 0, "Integer rebin factor applied to all three axes (must be > 1)")
	outputDir := flag.String("output", "", "Output directory (default: <input>_bin<factor> next to the input)")
	prefix := flag.String("prefix", "", "Prefix for output filenames")
	ratio := flag.Int("ratio", 0, "Codec compression ratio (default from config)")
	workers := flag.Int("workers", 0, "Number of slabs to process concurrently (default from config)")
	configPath := flag.String("config", "jp2rebin.yaml", "Path to YAML config file")
	flag.Parse()

	// Validate inputs
	if *inputDir == "" || *factor == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the config file.
	if *workers == 0 {
		*workers = cfg.Processing.Workers
	}
	if *ratio == 0 {
		*ratio = cfg.Output.CompressionRatio
	}
	if *prefix == "" {
		*prefix = cfg.Output.FilenamePrefix
	}

	// Pin the process-wide parallelism once, before any numeric work runs.
	if cfg.Processing.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.Processing.MaxProcs)
	}

	params := &rebin.Params{
		InputDir:  *inputDir,
		Factor:    *factor,
		OutputDir: *outputDir,
		Prefix:    *prefix,
		Ratio:     *ratio,
		Workers:   *workers,
	}

	// Interrupt stops scheduling new slabs; in-flight slabs finish.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Rebinning %s by factor %d with %d workers...\n", *inputDir, *factor, *workers)
	startTime := time.Now()
	outDir, err := rebin.Rebin(ctx, params)
	if err != nil {
		var runErr *rebin.RunError
		if errors.As(err, &runErr) {
			log.Printf("Rebinning finished with failures: %v", runErr)
			log.Fatalf("Failed output indices: %v", runErr.FailedIndices())
		}
		log.Fatalf("Rebinning failed: %v", err)
	}

	fmt.Printf("Done in %.2f seconds, rebinned files in %s\n", time.Since(startTime).Seconds(), outDir)
}
