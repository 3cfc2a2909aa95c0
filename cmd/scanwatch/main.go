// scanwatch uploads a file for scanning (or attaches to an existing scan)
// and prints every observed state until the verdict lands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"filescan-service/internal/logger"
	"filescan-service/internal/model"
	"filescan-service/pkg/client"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "scan service base URL")
	file := flag.String("file", "", "path of the file to upload")
	id := flag.String("id", "", "watch an existing scan id instead of uploading")
	title := flag.String("title", "", "optional title form field")
	description := flag.String("description", "", "optional description form field")
	interval := flag.Duration("interval", client.DefaultPollInterval, "poll interval")
	flag.Parse()

	logger.Init("info", "console")
	log := logger.Get()

	if *file == "" && *id == "" {
		fmt.Fprintln(os.Stderr, "either -file or -id is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	api := client.New(*addr)

	scanID := *id
	if scanID == "" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open file")
		}

		fields := make(map[string]string)
		if *title != "" {
			fields["title"] = *title
		}
		if *description != "" {
			fields["description"] = *description
		}

		accepted, err := api.CreateScan(ctx, filepath.Base(*file), f, fields)
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Msg("Upload failed")
		}
		scanID = accepted.ID
		log.Info().Str("scan_id", scanID).Str("status", string(accepted.Status)).Msg("Scan created")
	}

	final, err := api.WatchScan(ctx, scanID, *interval, func(record model.ScanRecord) {
		event := log.Info().Str("scan_id", record.ID).Str("status", string(record.Status))
		if record.Summary != nil {
			event = event.Str("verdict", string(record.Summary.Verdict)).Int("score", record.Summary.Score)
		}
		event.Msg("Scan state observed")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Watch failed")
	}

	if final.Summary != nil && len(final.Summary.Reasons) > 0 {
		for _, reason := range final.Summary.Reasons {
			log.Warn().Str("reason", reason).Msg("Flagged")
		}
	}

	switch final.Status {
	case model.ScanStatusCompleted:
		fmt.Printf("%s: clean (score %d) after %s\n", final.Filename, final.Summary.Score, time.Since(time.UnixMilli(final.TS)).Round(time.Second))
	case model.ScanStatusFlagged:
		fmt.Printf("%s: flagged as %s (score %d)\n", final.Filename, final.Summary.Verdict, final.Summary.Score)
		os.Exit(1)
	default:
		fmt.Printf("%s: scan errored\n", final.Filename)
		os.Exit(1)
	}
}
