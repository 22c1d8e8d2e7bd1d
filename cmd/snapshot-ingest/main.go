// Command snapshot-ingest sends a batch of images to the plate reader and
// stores one snapshot row per recognized plate.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"plate-service/internal/config"
	"plate-service/internal/db"
	"plate-service/internal/events"
	"plate-service/internal/logger"
	"plate-service/internal/recognizer"
	"plate-service/internal/repository"
	"plate-service/internal/service"
	"plate-service/internal/storage"
)

func main() {
	imagesFile := flag.String("images", "", "file with one image path or URL per line (default: arguments)")
	delay := flag.Duration("delay", 500*time.Millisecond, "pause between images")
	threshold := flag.Float64("confidence-threshold", -1, "minimum plate score in [0,1]; negative uses CONFIDENCE_THRESHOLD")
	camera := flag.String("camera", "", "camera id stored with every snapshot")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	for _, check := range []func() error{cfg.RequireDB, cfg.RequireRecognizer, cfg.RequireStorage} {
		if err := check(); err != nil {
			log.Fatal().Err(err).Msg("invalid configuration")
		}
	}

	sources, err := loadSources(*imagesFile, flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read image list")
	}
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "no images given: use -images <file> or pass paths as arguments")
		os.Exit(2)
	}

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	var store service.ImageStore
	if cfg.Storage.Mode == config.StoreS3 {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize object storage")
		}
		store = client
	}

	svc := service.NewPlateService(
		repository.NewPlateRepository(database),
		recognizer.NewClient(cfg.Recognizer, log),
		store,
		events.Nop{},
		cfg,
		log,
	)

	opts := service.IngestOptions{CameraID: *camera}
	if *threshold >= 0 {
		if *threshold > 1 {
			log.Fatal().Float64("threshold", *threshold).Msg("confidence threshold must be within [0, 1]")
		}
		opts.ConfidenceThreshold = threshold
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := 0
	for i, source := range sources {
		if ctx.Err() != nil {
			log.Warn().Msg("interrupted")
			break
		}
		if i > 0 && *delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(*delay):
			}
		}

		id, err := svc.IngestSnapshot(ctx, source, opts)
		switch {
		case err == nil:
			done++
			log.Info().Str("source", source).Str("snapshot_id", id.String()).Msg("ingested")
		case errors.Is(err, service.ErrBelowThreshold):
			log.Info().Str("source", source).Err(err).Msg("skipped")
		default:
			log.Error().Str("source", source).Err(err).Msg("failed to ingest")
		}
	}

	fmt.Printf("Completed: %d/%d\n", done, len(sources))
}

func loadSources(path string, args []string) ([]string, error) {
	if path == "" {
		return cleanSources(args), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readSources(f)
}

// readSources returns one source per non-empty line; lines starting with #
// are comments.
func readSources(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cleanSources(lines), nil
}

func cleanSources(lines []string) []string {
	sources := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	return sources
}
