package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/sydlexius/lineup/internal/backup"
	"github.com/sydlexius/lineup/internal/bus"
	"github.com/sydlexius/lineup/internal/config"
	"github.com/sydlexius/lineup/internal/database"
	"github.com/sydlexius/lineup/internal/entity"
	"github.com/sydlexius/lineup/internal/event"
	"github.com/sydlexius/lineup/internal/filesystem"
	"github.com/sydlexius/lineup/internal/genre"
	"github.com/sydlexius/lineup/internal/image"
	"github.com/sydlexius/lineup/internal/importer"
	"github.com/sydlexius/lineup/internal/lineup"
	"github.com/sydlexius/lineup/internal/logging"
	"github.com/sydlexius/lineup/internal/normalize"
	"github.com/sydlexius/lineup/internal/provider"
	"github.com/sydlexius/lineup/internal/provider/lastfm"
	"github.com/sydlexius/lineup/internal/provider/openai"
	"github.com/sydlexius/lineup/internal/provider/soundcloud"
	"github.com/sydlexius/lineup/internal/scrape"
	"github.com/sydlexius/lineup/internal/webhook"
)

const soundCloudTokenURL = "https://secure.soundcloud.com/oauth/token"

const usage = `usage:
  lineup import [-timetable file.csv] [-festival] <url|file.json>...
  lineup timetable <file.csv> [-o out.json]
  lineup genres event <id>
  lineup genres promoter <id>
  lineup backup
  lineup optimize`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "timetable":
		err = runTimetable(os.Args[2:], os.Stdout)
	case "import":
		err = withApp(func(ctx context.Context, a *app) error { return a.runImport(ctx, os.Args[2:]) })
	case "genres":
		err = withApp(func(ctx context.Context, a *app) error { return a.runGenres(ctx, os.Args[2:]) })
	case "backup":
		err = withApp(func(ctx context.Context, a *app) error { return a.runBackup(ctx) })
	case "optimize":
		err = withApp(func(ctx context.Context, a *app) error { return a.backups.Optimize(ctx) })
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runTimetable converts a timetable CSV into performance JSON. It needs no
// configuration or database.
func runTimetable(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("timetable", flag.ContinueOnError)
	out := fs.String("o", "", "write JSON to this file instead of stdout")
	if err := fs.Parse(reorder(args)); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("timetable: expected one CSV file")
	}

	perfs, err := readTimetable(fs.Arg(0))
	if err != nil {
		return err
	}
	if len(perfs) == 0 {
		return errors.New("no valid performances found, check the CSV formatting")
	}

	data, err := json.MarshalIndent(perfs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding performances: %w", err)
	}
	if *out == "" {
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}
	if err := filesystem.WriteFileAtomic(*out, append(data, '\n'), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved JSON output to %s\n", *out) //nolint:errcheck
	return nil
}

func readTimetable(path string) ([]lineup.Performance, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path given on the command line
	if err != nil {
		return nil, fmt.Errorf("opening timetable: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return lineup.ParseTimetable(f)
}

// reorder moves flags ahead of positional arguments so they may be given
// in either order.
func reorder(args []string) []string {
	var flags, pos []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) > 1 && a[0] == '-' {
			flags = append(flags, a)
			if a == "-o" || a == "-timetable" {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		pos = append(pos, a)
	}
	return append(flags, pos...)
}

// app holds everything the database-backed commands need.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	lists    *config.ListStore
	events   *event.Service
	genres   *genre.Service
	importer *importer.Importer
	backups  *backup.Service
	bus      *bus.Bus
}

func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configPath := os.Getenv("LINEUP_CONFIG_PATH")
	if configPath == "" {
		configPath = "lineup.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxFiles:   cfg.Logging.MaxFiles,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()
	applied, err := database.MigrateContext(ctx, db)
	if err != nil {
		return err
	}
	logger.Debug("database ready", slog.String("path", cfg.Database.Path), slog.Any("migrations_applied", applied))

	lists, err := config.NewListStore(cfg.ListsPath, logger)
	if err != nil {
		return fmt.Errorf("loading lists: %w", err)
	}
	go func() {
		if err := lists.Watch(ctx); err != nil {
			logger.Warn("lists will not be reloaded", "error", err)
		}
	}()

	eventBus := bus.New(logger, 256)
	eventBus.SubscribeAll(func(m bus.Message) {
		logger.Info("notification", slog.String("topic", string(m.Topic)), slog.Any("data", m.Data))
	})
	webhook.NewNotifier(cfg.Notify.WebhookURLs, logger).Attach(eventBus)
	go eventBus.Run()
	defer eventBus.Close()

	a := &app{cfg: cfg, logger: logger, db: db, lists: lists, bus: eventBus}
	a.wire()
	return fn(ctx, a)
}

// wire builds the providers and the import pipeline.
func (a *app) wire() {
	cfg, logger := a.cfg, a.logger

	limiters := provider.NewRateLimiterMap()
	limiters.Configure(cfg.Providers.RateLimits)
	oauth := provider.NewOAuthCredentials()
	if cfg.Providers.SoundCloudClientID != "" {
		oauth.Register(provider.NameSoundCloud, clientcredentials.Config{
			ClientID:     cfg.Providers.SoundCloudClientID,
			ClientSecret: cfg.Providers.SoundCloudClientSecret,
			TokenURL:     soundCloudTokenURL,
		}, &http.Client{Timeout: cfg.HTTP.Timeout})
	}
	creds := provider.ChainCredentials{
		provider.StaticCredentials{
			provider.NameLastFM: cfg.Providers.LastFMAPIKey,
			provider.NameOpenAI: cfg.Providers.OpenAIAPIKey,
		},
		oauth,
	}

	lastFM := lastfm.New(limiters, creds, logger)
	soundCloud := soundcloud.New(limiters, creds, logger)

	entities := entity.NewService(a.db)
	a.events = event.NewService(a.db)
	a.backups = backup.NewService(a.db, cfg.Backup.Dir, cfg.Backup.Keep, logger)
	a.genres = genre.NewService(a.db)

	var scraper scrape.Scraper = scrape.FileScraper{}
	if cfg.Scraper.Endpoint != "" {
		scraper = scrape.FileScraper{Next: scrape.NewClient(cfg.Scraper.Endpoint, limiters, logger)}
	}

	deps := importer.Deps{
		Resolver: entity.NewResolver(entity.ResolverDeps{
			Store:      entities,
			Normalizer: normalize.New(a.lists),
			Matcher:    normalize.Matcher{Threshold: cfg.Matching.Threshold, MinMargin: cfg.Matching.MinMargin},
			Images:     image.NewLocalHost(cfg.Images.Dir, cfg.Images.BaseURL, logger),
			Previews:   scrape.NewPreviewFetcher(limiters, logger),
			Timeout:    cfg.HTTP.Timeout,
			Logger:     logger,
		}),
		Entities: entities,
		Events:   a.events,
		Genres:   a.genres,
		Aggregator: genre.NewAggregator(a.genres, a.lists, genre.Caps{
			MaxGenres:         cfg.Genre.MaxGenres,
			FestivalMaxGenres: cfg.Genre.FestivalMaxGenres,
			MinOccurrences:    cfg.Genre.MinOccurrences,
			FallbackMax:       cfg.Genre.FallbackMax,
		}, logger),
		Scraper:     scraper,
		Festivals:   a.lists,
		Bus:         a.bus,
		Timeout:     cfg.HTTP.Timeout,
		EnrichDelay: cfg.HTTP.EnrichDelay,
		MaxGap:      time.Duration(cfg.Festival.MaxGapHours * float64(time.Hour)),
		Logger:      logger,
	}
	if cfg.Providers.SoundCloudClientID != "" {
		deps.Profiles = soundCloud
		if cfg.Providers.LastFMAPIKey != "" {
			deps.Assigner = genre.NewAssigner(a.genres,
				genre.NewExtractor(soundCloud, cfg.Genre.CatalogLimit),
				genre.NewValidator(lastFM, a.lists, cfg.Genre.MinDescription),
				logger)
		}
	}
	if cfg.Providers.OpenAIAPIKey != "" {
		deps.Extractor = openai.New(openai.Config{
			Model:   cfg.Providers.OpenAIModel,
			BaseURL: cfg.Providers.OpenAIBaseURL,
		}, limiters, creds, logger)
	}
	a.importer = importer.New(deps)
}

func (a *app) runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	timetable := fs.String("timetable", "", "read performances from a timetable CSV")
	festival := fs.Bool("festival", false, "force festival classification")
	if err := fs.Parse(reorder(args)); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("import: expected at least one event URL or file")
	}

	opts := importer.Options{Festival: *festival}
	if *timetable != "" {
		perfs, err := readTimetable(*timetable)
		if err != nil {
			return err
		}
		opts.Performances = perfs
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := 0
	for _, src := range fs.Args() {
		res, err := a.importer.ImportEvent(ctx, src, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			if errors.Is(err, event.ErrMissingTitle) {
				a.logger.Info("skipping event without a title", slog.String("source", src))
				continue
			}
			a.logger.Error("import failed", slog.String("source", src), slog.String("error", err.Error()))
			failed++
			continue
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, fs.NArg())
	}
	return nil
}

func (a *app) runGenres(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("genres: expected \"event <id>\" or \"promoter <id>\"")
	}
	var (
		ids []string
		err error
	)
	switch args[0] {
	case "event":
		ids, err = a.importer.AssignEventGenres(ctx, args[1])
	case "promoter":
		ids, err = a.importer.AssignPromoterGenres(ctx, args[1])
	default:
		return fmt.Errorf("genres: unknown parent %q", args[0])
	}
	if err != nil {
		return err
	}

	out := make([]*genre.Genre, 0, len(ids))
	for _, id := range ids {
		g, err := a.genres.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out = append(out, g)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (a *app) runBackup(ctx context.Context) error {
	snap, err := a.backups.Create(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
