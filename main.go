package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dacha-ingest/app/config"
	"github.com/dacha-ingest/app/models"
	"github.com/dacha-ingest/app/services"
	"github.com/dacha-ingest/internal/browser"
	"github.com/dacha-ingest/internal/extract"
	"github.com/dacha-ingest/internal/ingest"
	"github.com/dacha-ingest/internal/matcher"
	"github.com/dacha-ingest/internal/normalizer"
	"github.com/dacha-ingest/internal/sink"
)

func main() {
	// 1. Load configuration (.env → viper → engine yaml)
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using system env vars")
	}
	loadConfig()
	if err := config.Load(viper.GetString("engine.config_file")); err != nil {
		log.Fatalf("engine config: %v", err)
	}

	// 2. Init logger
	logger := initLogger()
	defer logger.Sync()
	logger.Info("starting dacha listing ingestion")

	// 3. Open the state store (redis when configured, state.json otherwise)
	store, err := newStateStore(logger)
	if err != nil {
		logger.Fatal("state store init failed", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	state, err := store.Load(ctx)
	if err != nil {
		// A corrupt index must never be merged against; duplicates would
		// follow. Refuse to run.
		logger.Fatal("state load failed", zap.Error(err))
	}

	// 4. Build the ingestion core
	pipe, err := buildPipeline(logger)
	if err != nil {
		logger.Fatal("pipeline init failed", zap.Error(err))
	}

	// 5. Scrape the batch
	raws, err := scrapeBatch(ctx, logger)
	if err != nil {
		logger.Fatal("scrape failed", zap.Error(err))
	}

	// 6. Run the pure transformation
	plan, nextState, err := pipe.ProcessBatch(raws, state)
	if err != nil {
		if errors.Is(err, ingest.ErrShardProvision) {
			logger.Error("batch aborted, will retry entirely next run", zap.Error(err))
			os.Exit(1)
		}
		logger.Fatal("batch processing failed", zap.Error(err))
	}

	// 7. Apply the write plan to the sinks
	if err := applyPlan(ctx, plan, logger); err != nil {
		logger.Fatal("write plan apply failed", zap.Error(err))
	}

	// 8. Persist state only after the plan landed
	if err := store.Save(ctx, nextState); err != nil {
		logger.Fatal("state save failed", zap.Error(err))
	}

	logger.Info("run complete",
		zap.Int("rows_written", plan.TotalRows()),
		zap.Int("indexed_listings", len(nextState.Index)))
}

// loadConfig sets viper defaults and env bindings.
func loadConfig() {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetDefault("app.env", "development")
	viper.SetDefault("engine.config_file", "config/engine.yaml")
	viper.SetDefault("state.file", "state.json")
	viper.SetDefault("state.redis_url", "")
	viper.SetDefault("scrape.start_url", "https://www.olx.uz/nedvizhimost/posutochno_pochasovo/dachi/tashkent/?currency=UZS")
	viper.SetDefault("scrape.base_url", "https://www.olx.uz")
	viper.SetDefault("scrape.max_pages", 20)
	viper.SetDefault("scrape.reveal_phone", true)
	viper.SetDefault("scrape.chrome_bin", "")
	viper.SetDefault("output.csv_dir", "output")
	viper.SetDefault("output.sheets_credentials", "")
	viper.SetDefault("output.spreadsheet_id", "")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("warning: cannot read config file: %v", err)
	}
}

func initLogger() *zap.Logger {
	var cfg zap.Config
	if viper.GetString("app.env") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("cannot initialize logger: %v", err)
	}
	return logger
}

func newStateStore(logger *zap.Logger) (services.StateStore, error) {
	if url := viper.GetString("state.redis_url"); url != "" {
		return services.NewRedisStateService(url, logger)
	}
	return services.NewFileStateService(viper.GetString("state.file"), logger), nil
}

func buildPipeline(logger *zap.Logger) (*ingest.Pipeline, error) {
	norm := normalizer.NewTextNormalizer()
	detector := normalizer.NewLanguageDetector(config.C.MinDetectLetters)

	dicts := matcher.DefaultDictionaries()
	relevance := matcher.DachaKeywords
	if path := config.C.DictionariesFile; path != "" {
		var err error
		dicts, relevance, err = matcher.LoadDictionaries(path)
		if err != nil {
			return nil, fmt.Errorf("load dictionaries: %w", err)
		}
	}
	fm := matcher.NewFuzzyMatcher(norm, dicts, relevance, config.C.SimilarityThreshold, logger)

	loc, err := time.LoadLocation(config.C.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", config.C.Timezone, err)
	}

	builder := ingest.NewRecordBuilder(norm, detector, fm, loc, logger)
	merger := ingest.NewMergeEngine(logger)
	router := ingest.NewCapacityRouter(config.C.ShardCapacity, config.C.ShardPrefix, nil, logger)

	pipe := ingest.NewPipeline(builder, merger, router, nil, logger)
	pipe.FilterRelevance = config.C.FilterRelevance
	return pipe, nil
}

// scrapeBatch drives the browser through listing pages and every ad page,
// returning the fully extracted batch the core consumes.
func scrapeBatch(ctx context.Context, logger *zap.Logger) ([]models.RawAd, error) {
	fetcher := browser.NewFetcher(viper.GetString("scrape.chrome_bin"), logger)
	extractor := extract.NewAdExtractor(logger)

	browserCtx, cancel := fetcher.NewBrowserContext(ctx)
	defer cancel()

	baseURL := viper.GetString("scrape.base_url")
	startURL := viper.GetString("scrape.start_url")
	maxPages := viper.GetInt("scrape.max_pages")
	revealPhone := viper.GetBool("scrape.reveal_phone")

	var urls []string
	seen := make(map[string]struct{})
	for page := 1; page <= maxPages; page++ {
		pageURL := startURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s&page=%d", startURL, page)
		}
		html, err := fetcher.FetchListingPage(browserCtx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			logger.Warn("listing page failed, stopping pagination", zap.Int("page", page), zap.Error(err))
			break
		}
		links, err := extractor.ExtractListingLinks(baseURL, html)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, u := range links {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
			added++
		}
		if added == 0 {
			break
		}
		fetcher.Throttle(browserCtx)
	}
	logger.Info("ad urls collected", zap.Int("count", len(urls)))

	var raws []models.RawAd
	failedNav := 0
	for _, u := range urls {
		fetcher.Throttle(browserCtx)
		html, phone, err := fetcher.FetchAdPage(browserCtx, u, revealPhone)
		if err != nil {
			failedNav++
			logger.Warn("ad fetch failed", zap.String("url", u), zap.Error(err))
			continue
		}
		raw, err := extractor.ExtractAd(u, html, time.Now())
		if err != nil {
			failedNav++
			logger.Warn("ad extract failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if raw.SellerPhone == "" {
			raw.SellerPhone = phone
		}
		raws = append(raws, raw)
	}

	logger.Info("scrape summary",
		zap.Int("found", len(urls)),
		zap.Int("fetched", len(raws)),
		zap.Int("failed_nav", failedNav))
	return raws, nil
}

// applyPlan writes the plan to the local CSV snapshot and, when
// configured, the Google Sheets spreadsheet.
func applyPlan(ctx context.Context, plan *models.WritePlan, logger *zap.Logger) error {
	csvSink, err := sink.NewCSVSink(viper.GetString("output.csv_dir"), logger)
	if err != nil {
		return err
	}
	defer csvSink.Close()
	if err := sink.Apply(ctx, csvSink, plan); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}

	creds := viper.GetString("output.sheets_credentials")
	spreadsheetID := viper.GetString("output.spreadsheet_id")
	if creds == "" || spreadsheetID == "" {
		logger.Info("sheets sink not configured, csv only")
		return nil
	}

	sheetsSink, err := sink.NewSheetsSink(ctx, creds, spreadsheetID, logger)
	if err != nil {
		return err
	}
	defer sheetsSink.Close()
	if err := sink.Apply(ctx, sheetsSink, plan); err != nil {
		return fmt.Errorf("sheets sink: %w", err)
	}
	return nil
}
