package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"weather-dashboard/api"
	"weather-dashboard/cache"
	"weather-dashboard/collector"
	"weather-dashboard/config"
	"weather-dashboard/dashboard"
	"weather-dashboard/datasource"
	"weather-dashboard/logger"
	"weather-dashboard/models"
	"weather-dashboard/providers/openweathermap"
	"weather-dashboard/providers/prediction"
	"weather-dashboard/providers/weatherapi"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	configFile := flag.String("config", "configs/config.toml", "Path to configuration file")
	port := flag.Int("port", 0, "Port to run the server on (overrides the config file)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		log.Printf("Warning: %v; using built-in defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	table := datasource.PredefinedLocations()
	live, status, closeCache, err := buildLiveSources(ctx, cfg, table, appLogger)
	if err != nil {
		appLogger.Error("Failed to set up forecast sources", logger.Error(err))
		os.Exit(1)
	}
	defer closeCache()

	if len(live) == 0 && !cfg.Fallback.DemoEnabled {
		appLogger.Warn("No live sources configured and demo disabled; only predefined locations will resolve")
	}

	chain := datasource.NewFallbackSource(live, datasource.FallbackOptions{
		DemoEnabled: cfg.Fallback.DemoEnabled,
		Table:       table,
	}, appLogger)
	appLogger.Info("Forecast chain ready",
		logger.Any("sources", chain.Sources()),
		logger.Bool("demo_enabled", cfg.Fallback.DemoEnabled))

	service, err := dashboard.NewService(chain, dashboard.Config{
		LookAheadDays:    cfg.Dashboard.LookAheadDays,
		HorizonDays:      cfg.Dashboard.HorizonDays,
		Locale:           cfg.Dashboard.Locale,
		FetchTimeout:     cfg.Dashboard.FetchTimeout(),
		ReverseLookAhead: cfg.Dashboard.ReverseLookAhead,
		DefaultLocation:  cfg.Dashboard.DefaultLocation,
	}, appLogger)
	if err != nil {
		appLogger.Error("Failed to create dashboard service", logger.Error(err))
		os.Exit(1)
	}

	hub := api.NewHub(cfg.Dashboard.WebSocketBufferSize, appLogger)
	service.SetPublisher(hub)
	go hub.Run(ctx)

	forecastStore := api.NewForecastStore()
	server := api.NewServer(service, chain, forecastStore, hub, api.Options{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		ReadTimeout:        config.Timeout(cfg.Server.ReadTimeoutSecs),
		WriteTimeout:       config.Timeout(cfg.Server.WriteTimeoutSecs),
		IdleTimeout:        config.Timeout(cfg.Server.IdleTimeoutSecs),
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		StaticFilesDir:     cfg.Server.StaticFilesDir,
		HorizonDays:        cfg.Dashboard.HorizonDays,
		FetchTimeout:       cfg.Dashboard.FetchTimeout(),
		DefaultLocation:    cfg.Dashboard.DefaultLocation,
	}, appLogger)
	if status != nil {
		server.SetStatusProber(status)
	}

	stopCollector := func() {}
	if cfg.Collector.Enabled && len(cfg.Collector.Locations) > 0 {
		stopCollector = startCollector(ctx, cfg, chain, forecastStore, appLogger)
	}

	go pruneSessions(ctx, service, cfg.Dashboard.PruneInterval(), cfg.Dashboard.SessionIdle(), appLogger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownChan:
		appLogger.Info("Shutting down", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("Server stopped", logger.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Shutdown error", logger.Error(err))
	}
	cancel()
	stopCollector()
	fmt.Println("Shutdown complete")
}

// buildLiveSources creates the enabled providers in try order: local
// prediction backend, WeatherAPI, OpenWeatherMap. Each is rate limited when
// configured and then cached, so cache hits never spend rate tokens.
func buildLiveSources(ctx context.Context, cfg *config.Config, table *datasource.LocationTable, appLogger *logger.Logger) ([]datasource.ForecastSource, api.StatusProber, func(), error) {
	store, closeCache, err := buildCacheStore(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, nil, err
	}

	wrap := func(src datasource.ForecastSource, rps float64, burst int) datasource.ForecastSource {
		if rps > 0 {
			src = datasource.NewRateLimitedForecastSource(src, rps, burst)
			appLogger.Info("Applied rate limiting", logger.String("source", src.Name()), logger.Float64("rps", rps))
		}
		if store != nil {
			src = cache.NewCachedForecastSource(src, store, cfg.Cache.TTL(), appLogger)
		}
		return src
	}

	var (
		geocoder datasource.LocationSearcher = table
		wapi     datasource.ForecastSource
		owm      datasource.ForecastSource
	)

	if cfg.WeatherAPI.Enabled {
		source := weatherapi.NewWeatherAPIForecastSource(weatherapi.Config{
			APIKey:  cfg.WeatherAPI.APIKey,
			BaseURL: cfg.WeatherAPI.BaseURL,
			Lang:    cfg.WeatherAPI.Lang,
			Timeout: config.Timeout(cfg.WeatherAPI.TimeoutSecs),
		}, appLogger)
		geocoder = source
		wapi = wrap(source, cfg.WeatherAPI.RateLimit, cfg.WeatherAPI.RateBurst)
	}

	if cfg.OpenWeatherMap.Enabled {
		source := openweathermap.NewOpenWeatherMapForecastSource(openweathermap.Config{
			APIKey:  cfg.OpenWeatherMap.APIKey,
			BaseURL: cfg.OpenWeatherMap.BaseURL,
			Lang:    cfg.OpenWeatherMap.Lang,
			Timeout: config.Timeout(cfg.OpenWeatherMap.TimeoutSecs),
		}, appLogger)
		owm = wrap(source, cfg.OpenWeatherMap.RateLimit, cfg.OpenWeatherMap.RateBurst)
	}

	var (
		sources []datasource.ForecastSource
		status  api.StatusProber
	)
	if cfg.Prediction.Enabled {
		source := prediction.NewPredictionSource(prediction.Config{
			BaseURL:     cfg.Prediction.BaseURL,
			Timeout:     config.Timeout(cfg.Prediction.TimeoutSecs),
			Concurrency: cfg.Prediction.Concurrency,
		}, geocoder, appLogger)
		status = source
		sources = append(sources, wrap(source, 0, 0))
	}
	if wapi != nil {
		sources = append(sources, wapi)
	}
	if owm != nil {
		sources = append(sources, owm)
	}
	return sources, status, closeCache, nil
}

func buildCacheStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	if !cfg.Enabled {
		return nil, func() {}, nil
	}
	switch cfg.Backend {
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rdb, err := cache.DialRedis(dialCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		store := cache.NewRedisStore(rdb, cfg.TTL())
		return store, func() { store.Close() }, nil
	default:
		store := cache.NewMemoryStore(cfg.TTL(), 2*cfg.TTL())
		return store, func() { store.Close() }, nil
	}
}

// startCollector keeps the configured locations warm in the forecast store
// and prunes entries older than the collector max age
func startCollector(ctx context.Context, cfg *config.Config, chain datasource.ForecastSource, store *api.ForecastStore, appLogger *logger.Logger) func() {
	collectorLogger := appLogger.Named("collector")
	fc := collector.NewForecastCollector([]datasource.ForecastSource{chain}, cfg.Collector.Locations, cfg.Dashboard.HorizonDays)
	fc.SetInterval(cfg.Collector.Interval())
	fc.SetFetchTimeout(cfg.Dashboard.FetchTimeout())
	stop := fc.Start(ctx)

	go func() {
		for data := range fc.OutputChannel() {
			if data.Availability != models.Live {
				continue
			}
			store.UpdateForecast(data)
			collectorLogger.Debug("Stored forecast",
				logger.String("query", data.Query),
				logger.String("provider", data.Provider),
				logger.Int("days", len(data.Days)))
		}
	}()
	go func() {
		for err := range fc.ErrorChannel() {
			collectorLogger.Warn("Collection failed", logger.Error(err))
		}
	}()
	go func() {
		ticker := time.NewTicker(cfg.Collector.MaxAge())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := store.PruneOldForecasts(cfg.Collector.MaxAge()); n > 0 {
					collectorLogger.Info("Pruned old forecasts", logger.Int("count", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	collectorLogger.Info("Collector started",
		logger.Any("locations", cfg.Collector.Locations),
		logger.Duration("interval", cfg.Collector.Interval()))
	return stop
}

// pruneSessions drops idle dashboard sessions until ctx is done
func pruneSessions(ctx context.Context, service *dashboard.Service, every, maxIdle time.Duration, appLogger *logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := service.Prune(maxIdle); n > 0 {
				appLogger.Info("Pruned idle sessions", logger.Int("count", n), logger.Int("remaining", service.Len()))
			}
		case <-ctx.Done():
			return
		}
	}
}
