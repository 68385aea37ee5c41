package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/twpayne/go-geopix"
)

// Config holds the defaults loaded from environment variables.
type Config struct {
	LogLevel    string `env:"GEOPIX_LOG_LEVEL" envDefault:"WARN"`
	Concurrency int    `env:"GEOPIX_CONCURRENCY" envDefault:"4"`
	LazyDecode  bool   `env:"GEOPIX_LAZY_DECODE" envDefault:"false"`
	CacheSize   int    `env:"GEOPIX_CACHE_SIZE" envDefault:"32"`
}

type lookupOptions struct {
	concurrency int
	interpolate bool
	lazyDecode  bool
	set         bool
	suffix      string
	cacheSize   int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	logger := createLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCmd(cfg, logger).ExecuteContext(ctx)
}

func createLogger(cfg Config) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func newRootCmd(cfg Config, logger *slog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "geopix",
		Short:         "Read GeoTIFF sample values at geographic coordinates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newLookupCmd(cfg, logger), newInfoCmd(logger))
	return rootCmd
}

func newLookupCmd(cfg Config, logger *slog.Logger) *cobra.Command {
	options := lookupOptions{
		concurrency: cfg.Concurrency,
		lazyDecode:  cfg.LazyDecode,
		cacheSize:   cfg.CacheSize,
	}
	lookupCmd := &cobra.Command{
		Use:   "lookup FILE [LAT,LNG...]",
		Short: "Print the samples at coordinates",
		Long: `Print the sample at each coordinate as "lat lng value bits".

Coordinates are read from standard input, one "lat,lng" per line, if none are
given as arguments.`,
		Example: `  geopix lookup dem.tif 45.832,6.865
  geopix lookup --set --suffix .tif tiles/ 45.832,6.865 46.1,7.2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoords(args[1:], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runLookup(cmd.Context(), cmd.OutOrStdout(), logger, args[0], coords, options)
		},
	}
	lookupCmd.Flags().IntVarP(&options.concurrency, "concurrency", "c", options.concurrency, "maximum concurrent lookups")
	lookupCmd.Flags().BoolVarP(&options.interpolate, "interpolate", "i", false, "interpolate bilinearly")
	lookupCmd.Flags().BoolVar(&options.lazyDecode, "lazy", options.lazyDecode, "decode strips on first lookup")
	lookupCmd.Flags().BoolVar(&options.set, "set", false, "treat FILE as a directory of one degree rasters")
	lookupCmd.Flags().StringVar(&options.suffix, "suffix", ".tif", "raster filename suffix with --set")
	lookupCmd.Flags().IntVar(&options.cacheSize, "cache-size", options.cacheSize, "maximum open rasters with --set")
	return lookupCmd
}

func newInfoCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print a raster's layout and georeferencing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raster, err := geopix.OpenFile(args[0], geopix.WithLogger(logger), geopix.WithLazyDecode())
			if err != nil {
				return err
			}
			defer raster.Close()
			return printInfo(cmd.OutOrStdout(), raster)
		},
	}
}

type interpolator struct {
	raster *geopix.Raster
}

func (i interpolator) Lookup(lat, lng float64) (float64, int, error) {
	value, err := i.raster.Interpolate(lat, lng)
	if err != nil {
		return 0, 0, err
	}
	return value, i.raster.Descriptor().BitsPerSample, nil
}

func runLookup(ctx context.Context, w io.Writer, logger *slog.Logger, path string, coords []geopix.Coordinate, options lookupOptions) error {
	rasterOptions := []geopix.Option{geopix.WithLogger(logger)}
	if options.lazyDecode {
		rasterOptions = append(rasterOptions, geopix.WithLazyDecode())
	}

	var looker geopix.Looker
	switch {
	case options.set:
		if options.interpolate {
			return errors.New("--interpolate cannot be used with --set")
		}
		rasterSet, err := geopix.NewRasterSet(
			os.DirFS(path),
			geopix.OneDegreeFilenameFunc(options.suffix),
			geopix.WithCacheSize(options.cacheSize),
			geopix.WithRasterOptions(rasterOptions...),
		)
		if err != nil {
			return err
		}
		defer rasterSet.Close()
		looker = rasterSet
	default:
		raster, err := geopix.OpenFile(path, rasterOptions...)
		if err != nil {
			return err
		}
		defer raster.Close()
		if options.interpolate {
			looker = interpolator{raster: raster}
		} else {
			looker = raster
		}
	}

	results, err := geopix.LookupAll(ctx, looker, coords, options.concurrency)
	if err != nil {
		return err
	}

	failures := 0
	for _, result := range results {
		if result.Err != nil {
			failures++
			logger.Error("lookup failed", "lat", result.Coordinate.Lat, "lng", result.Coordinate.Lng, "error", result.Err)
			fmt.Fprintf(w, "%g %g error: %v\n", result.Coordinate.Lat, result.Coordinate.Lng, result.Err)
			continue
		}
		fmt.Fprintf(w, "%g %g %g %d\n", result.Coordinate.Lat, result.Coordinate.Lng, result.Value, result.BitsPerSample)
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d lookups failed", failures, len(results))
	}
	return nil
}

func printInfo(w io.Writer, raster *geopix.Raster) error {
	descriptor := raster.Descriptor()
	geoTransform := raster.GeoTransform()
	bounds := raster.Bounds()
	sampleFormat := "unsigned"
	if descriptor.Signed {
		sampleFormat = "signed"
	}
	fmt.Fprintf(w, "Size: %dx%d\n", descriptor.Width, descriptor.Height)
	fmt.Fprintf(w, "Sample: %d bit %s, %s\n", descriptor.BitsPerSample, sampleFormat, descriptor.ByteOrder)
	fmt.Fprintf(w, "Strips: %d (%d bytes)\n", len(descriptor.StripOffsets), descriptor.StripBytes())
	fmt.Fprintf(w, "Origin: %g, %g\n", geoTransform.OriginLatitude, geoTransform.OriginLongitude)
	fmt.Fprintf(w, "Pixel scale: %g, %g\n", geoTransform.PixelScaleX, geoTransform.PixelScaleY)
	fmt.Fprintf(w, "Upper left: %g, %g\n", bounds.UpperLeft.Lat, bounds.UpperLeft.Lng)
	fmt.Fprintf(w, "Lower right: %g, %g\n", bounds.LowerRight.Lat, bounds.LowerRight.Lng)

	geoKeys, err := raster.GeoKeys()
	switch {
	case err != nil:
		fmt.Fprintf(w, "GeoKeys: %v\n", err)
	case geoKeys != nil:
		for _, key := range slices.Sorted(maps.Keys(geoKeys.Params)) {
			fmt.Fprintf(w, "GeoKey %s: %d\n", key, geoKeys.Params[key])
		}
		for _, key := range slices.Sorted(maps.Keys(geoKeys.DoubleParams)) {
			fmt.Fprintf(w, "GeoKey %s: %g\n", key, geoKeys.DoubleParams[key])
		}
		for _, key := range slices.Sorted(maps.Keys(geoKeys.ASCIIParams)) {
			fmt.Fprintf(w, "GeoKey %s: %q\n", key, geoKeys.ASCIIParams[key])
		}
	}
	return nil
}

func parseCoords(args []string, r io.Reader) ([]geopix.Coordinate, error) {
	if len(args) > 0 {
		coords := make([]geopix.Coordinate, 0, len(args))
		for _, arg := range args {
			coord, err := parseCoord(arg)
			if err != nil {
				return nil, err
			}
			coords = append(coords, coord)
		}
		return coords, nil
	}

	var coords []geopix.Coordinate
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		coord, err := parseCoord(line)
		if err != nil {
			return nil, err
		}
		coords = append(coords, coord)
	}
	return coords, scanner.Err()
}

func parseCoord(s string) (geopix.Coordinate, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return geopix.Coordinate{}, fmt.Errorf("%s: expected lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geopix.Coordinate{}, fmt.Errorf("%s: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return geopix.Coordinate{}, fmt.Errorf("%s: %w", s, err)
	}
	return geopix.Coordinate{Lat: lat, Lng: lng}, nil
}
