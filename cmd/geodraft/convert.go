package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/ogierm/geodraft/internal/config"
	"github.com/ogierm/geodraft/internal/dxf"
	"github.com/ogierm/geodraft/internal/logger"
	"github.com/ogierm/geodraft/internal/metrics"
	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/observability"
	"github.com/ogierm/geodraft/internal/ops"
	"github.com/ogierm/geodraft/internal/pipeline"
	"github.com/ogierm/geodraft/internal/raster"
	"github.com/ogierm/geodraft/internal/style"
)

func newConvertCmd(root *rootFlags) *cobra.Command {
	var (
		projectPath string
		out         string
		layers      []string
		tilesDir    string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Run a project file and write the drawing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd.Context(), root, projectPath, out, layers, tilesDir)
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "project file (yaml, json or toml)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output drawing path (defaults to the project's output setting)")
	cmd.Flags().StringSliceVarP(&layers, "layers", "l", nil, "only process these layers")
	cmd.Flags().StringVar(&tilesDir, "tiles-dir", "", "directory for basemap tiles (defaults next to the drawing)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runConvert(parent context.Context, root *rootFlags, projectPath, out string, layers []string, tilesDir string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := config.FromEnv()
	if root.logLevel != "" {
		settings.LogLevel = root.logLevel
	}
	if root.logConsole {
		settings.LogConsole = true
	}
	if root.metricsAddr != "" {
		settings.MetricsAddr = root.metricsAddr
	}

	cfg, err := config.LoadProject(projectPath)
	if err != nil {
		return err
	}

	zl := logger.Build(logger.Config{
		Level:     settings.LogLevel,
		Console:   settings.LogConsole,
		Project:   cfg.Name,
		Component: "geodraft",
	}, os.Stderr)
	log := logger.NewSlog(&zl)
	ctx = logger.WithRunID(ctx, logger.NewID())

	observability.SetProject(cfg.Name)
	observability.ExposeBuildInfo(version)

	if settings.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, log, metrics.Config{
				Addr: settings.MetricsAddr,
				Path: settings.MetricsPath,
			}); err != nil {
				log.Error("metrics server failed", "err", err)
			}
		}()
	}

	reg := ops.NewRegistry(log)
	exec := pipeline.NewExecutor(log, reg, nil)
	svc := pipeline.NewService(log, exec)

	results := svc.Run(ctx, *cfg, layers)
	if len(results) == 0 {
		return fmt.Errorf("project %q produced no results", cfg.Name)
	}
	order := pipeline.ResultNames(*cfg, results)

	outPath := firstNonEmpty(out, settings.OutputOverride, cfg.Output)
	if outPath == "" {
		outPath = cfg.Name + ".dxf"
	}

	styles := style.NewResolver(log, cfg.Styles)
	writer := dxf.NewWriter(log, styles)
	entities, err := writer.Write(results, order, outPath)
	if err != nil {
		return fmt.Errorf("write drawing: %w", err)
	}
	if entities == 0 {
		return fmt.Errorf("no entities written to %s", outPath)
	}
	log.Info("drawing written", "path", outPath, "entities", entities, "results", len(results))

	if cfg.Raster != nil {
		if tilesDir == "" {
			tilesDir = strings.TrimSuffix(outPath, filepath.Ext(outPath)) + "_tiles"
		}
		if err := fetchBasemap(ctx, log, settings, *cfg.Raster, tilesDir); err != nil {
			return fmt.Errorf("basemap: %w", err)
		}
	}
	return nil
}

func fetchBasemap(ctx context.Context, log *slog.Logger, settings config.Settings, rc model.RasterConfig, dir string) error {
	if rc.RedisAddr == "" {
		rc.RedisAddr = settings.RedisAddr
	}
	if rc.CacheSize == 0 {
		rc.CacheSize = settings.TileCacheSize
	}

	dl, err := raster.NewDownloader(ctx, log, rc)
	if err != nil {
		return err
	}
	defer dl.Close()

	b := orb.Bound{
		Min: orb.Point{rc.BBox[0], rc.BBox[1]},
		Max: orb.Point{rc.BBox[2], rc.BBox[3]},
	}
	tiles, err := dl.FetchExtent(ctx, b, rc.Zoom)
	if err != nil {
		return err
	}
	if err := raster.SaveAll(dir, tiles); err != nil {
		return err
	}
	log.Info("basemap saved", "dir", dir, "tiles", len(tiles), "zoom", rc.Zoom)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
