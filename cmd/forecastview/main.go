package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"weather-dashboard/cache"
	"weather-dashboard/config"
	"weather-dashboard/datasource"
	"weather-dashboard/forecast"
	"weather-dashboard/logger"
	"weather-dashboard/providers/openweathermap"
	"weather-dashboard/providers/prediction"
	"weather-dashboard/providers/weatherapi"
)

// forecastview renders the dashboard view for one location in the terminal.
// With -repeat > 1 the location is fetched again to show the cache at work.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file:", err)
	}

	configFile := flag.String("config", "configs/config.toml", "Path to configuration file")
	location := flag.String("location", "", "Location name or \"lat,lon\" (defaults to the configured default location)")
	date := flag.String("date", "", "Date to select, YYYY-MM-DD")
	lookAhead := flag.Int("look-ahead", -1, "Number of look-ahead days (-1 uses the config)")
	repeat := flag.Int("repeat", 1, "Number of times to fetch the location")
	verbose := flag.Bool("v", false, "Log source activity")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if *lookAhead >= 0 {
		cfg.Dashboard.LookAheadDays = *lookAhead
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.NewNop()
	if *verbose {
		if appLogger, err = logger.New(logger.Config{Level: "debug", Format: "console"}); err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
	}

	store := cache.NewMemoryStore(cfg.Cache.TTL(), 2*cfg.Cache.TTL())
	defer store.Close()

	table := datasource.PredefinedLocations()
	sources := buildSources(cfg, table, store, appLogger)
	chain := datasource.NewFallbackSource(sources, datasource.FallbackOptions{
		DemoEnabled: cfg.Fallback.DemoEnabled,
		Table:       table,
	}, appLogger)

	synchronizer, err := forecast.NewSynchronizer(forecast.Options{
		LookAheadDays: cfg.Dashboard.LookAheadDays,
		Locale:        cfg.Dashboard.Locale,
	})
	if err != nil {
		log.Fatalf("Invalid dashboard settings: %v", err)
	}

	query := strings.TrimSpace(*location)
	if query == "" {
		query = cfg.Dashboard.DefaultLocation
	}

	for i := 0; i < *repeat; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Dashboard.FetchTimeout())
		start := time.Now()
		data, err := chain.FetchForecast(ctx, query, cfg.Dashboard.HorizonDays)
		cancel()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		data.TruncateDays(cfg.Dashboard.HorizonDays)

		view, err := synchronizer.Load(data)
		if err == nil && *date != "" {
			view, err = synchronizer.SelectDay(*date)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n*** Fetch %d took %s ***\n", i+1, time.Since(start).Round(time.Millisecond))
		render(data.Location.DisplayName(), data.Note, view, cfg.Dashboard.ReverseLookAhead)
	}

	for _, source := range sources {
		if cached, ok := source.(*cache.CachedForecastSource); ok {
			hits, misses := cached.CacheStats()
			fmt.Printf("\nStats for %s: %d cache hits, %d cache misses\n", cached.Name(), hits, misses)
		}
	}
}

// buildSources mirrors the server: prediction backend, WeatherAPI and
// OpenWeatherMap, each behind the shared memory cache
func buildSources(cfg *config.Config, table *datasource.LocationTable, store cache.Store, appLogger *logger.Logger) []datasource.ForecastSource {
	var (
		sources  []datasource.ForecastSource
		geocoder datasource.LocationSearcher = table
		wapi     *weatherapi.WeatherAPIForecastSource
	)

	if cfg.WeatherAPI.Enabled {
		wapi = weatherapi.NewWeatherAPIForecastSource(weatherapi.Config{
			APIKey:  cfg.WeatherAPI.APIKey,
			BaseURL: cfg.WeatherAPI.BaseURL,
			Lang:    cfg.WeatherAPI.Lang,
			Timeout: config.Timeout(cfg.WeatherAPI.TimeoutSecs),
		}, appLogger)
		geocoder = wapi
	}
	if cfg.Prediction.Enabled {
		p := prediction.NewPredictionSource(prediction.Config{
			BaseURL:     cfg.Prediction.BaseURL,
			Timeout:     config.Timeout(cfg.Prediction.TimeoutSecs),
			Concurrency: cfg.Prediction.Concurrency,
		}, geocoder, appLogger)
		sources = append(sources, cache.NewCachedForecastSource(p, store, cfg.Cache.TTL(), appLogger))
	}
	if wapi != nil {
		sources = append(sources, cache.NewCachedForecastSource(wapi, store, cfg.Cache.TTL(), appLogger))
	}
	if cfg.OpenWeatherMap.Enabled {
		owm := openweathermap.NewOpenWeatherMapForecastSource(openweathermap.Config{
			APIKey:  cfg.OpenWeatherMap.APIKey,
			BaseURL: cfg.OpenWeatherMap.BaseURL,
			Lang:    cfg.OpenWeatherMap.Lang,
			Timeout: config.Timeout(cfg.OpenWeatherMap.TimeoutSecs),
		}, appLogger)
		sources = append(sources, cache.NewCachedForecastSource(owm, store, cfg.Cache.TTL(), appLogger))
	}
	return sources
}

func render(place, note string, view *forecast.View, reverse bool) {
	p := view.Primary
	fmt.Printf("%s  [%s, %s]\n", place, view.Availability, view.Provider)
	if note != "" {
		fmt.Printf("  %s\n", note)
	}
	fmt.Printf("%s, %s   %d°C   %s\n", p.DayName, p.DateLabel, p.TemperatureC, p.ConditionText)
	fmt.Printf("  Wind %.1f km/h   Humidity %.0f%%", p.WindKph, p.HumidityPct)
	if p.PressureMb != nil {
		fmt.Printf("   Pressure %.0f mb", *p.PressureMb)
	}
	fmt.Println()

	if len(view.LookAhead) > 0 {
		fmt.Println("Next days:")
		for i := range view.LookAhead {
			slot := view.LookAhead[i]
			if reverse {
				slot = view.LookAhead[len(view.LookAhead)-1-i]
			}
			if slot.Hidden {
				fmt.Println("  --")
				continue
			}
			fmt.Printf("  %-4s %3d°C  %s\n", slot.DayLabel, slot.TemperatureC, slot.ConditionText)
		}
	}

	fmt.Printf("Range: %s .. %s (showing %s)\n", view.Picker.Min, view.Picker.Max, view.Picker.Value)
	if view.Warning != nil {
		fmt.Printf("Warning: %s\n", view.Warning)
	}

	var chart strings.Builder
	for i, t := range view.Chart.TemperaturesC {
		marker := " "
		if i == view.Chart.SelectedIndex {
			marker = "*"
		}
		fmt.Fprintf(&chart, "%s%s %.1f  ", marker, view.Chart.Labels[i], t)
	}
	fmt.Printf("Chart: %s\n", strings.TrimSpace(chart.String()))
	fmt.Printf("Map: %.4f, %.4f %q\n", view.Map.Latitude, view.Map.Longitude, view.Map.Label)
}
