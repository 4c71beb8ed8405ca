package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/database"
	"github.com/atrai/atrai-backend-go/internal/logging"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/repository"
	"github.com/atrai/atrai-backend-go/internal/source"
)

func main() {
	pointsCSV := flag.String("points", "", "CSV file of point records")
	roadsJSON := flag.String("roads", "", "GeoJSON file of road segments")
	campaign := flag.String("campaign", "", "campaign for CSV rows without a grouptag column; upstream campaign to copy")
	region := flag.String("region", "", "region the imported roads belong to")
	upstream := flag.Bool("upstream", false, "copy from UPSTREAM_DATABASE_URL instead of files")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Config{Path: cfg.DBPath, Logger: logger})
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	imp := &importer{
		points: repository.NewPointRepository(db),
		roads:  repository.NewRoadRepository(db),
		logger: logger,
	}

	switch {
	case *upstream:
		err = imp.fromUpstream(ctx, cfg.UpstreamDatabaseURL, *campaign, *region)
	case *pointsCSV != "" || *roadsJSON != "":
		err = imp.fromFiles(ctx, *pointsCSV, *roadsJSON, *campaign, *region)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}
}

type importer struct {
	points *repository.PointRepository
	roads  *repository.RoadRepository
	logger *zap.Logger
}

func (i *importer) fromFiles(ctx context.Context, pointsPath, roadsPath, campaign, region string) error {
	if pointsPath != "" {
		f, err := os.Open(pointsPath)
		if err != nil {
			return err
		}
		defer f.Close()

		records, skipped, err := source.ReadPointsCSV(f, campaign)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", pointsPath, err)
		}
		if err := i.storePoints(ctx, records, skipped); err != nil {
			return err
		}
	}

	if roadsPath != "" {
		f, err := os.Open(roadsPath)
		if err != nil {
			return err
		}
		defer f.Close()

		segments, err := source.ReadRoadsGeoJSON(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", roadsPath, err)
		}
		if err := i.storeRoads(ctx, region, segments); err != nil {
			return err
		}
	}
	return nil
}

func (i *importer) fromUpstream(ctx context.Context, url, campaign, region string) error {
	if url == "" {
		return errors.New("UPSTREAM_DATABASE_URL is not set")
	}
	pg, err := source.NewPostGIS(ctx, url)
	if err != nil {
		return err
	}
	defer pg.Close()

	if campaign != "" {
		records, err := pg.ListPoints(ctx, models.PointFilter{Campaign: campaign})
		if err != nil {
			return err
		}
		if err := i.storePoints(ctx, records, 0); err != nil {
			return err
		}
	}

	segments, err := pg.ListRoads(ctx, region)
	if err != nil {
		return err
	}
	return i.storeRoads(ctx, region, segments)
}

func (i *importer) storePoints(ctx context.Context, records []models.PointRecord, skipped int) error {
	n, err := i.points.InsertPoints(ctx, records)
	if err != nil {
		return err
	}
	i.logger.Info("imported points", zap.Int("rows", n), zap.Int("skipped", skipped))
	return nil
}

func (i *importer) storeRoads(ctx context.Context, region string, segments []models.RoadSegment) error {
	if err := i.roads.ReplaceRoads(ctx, region, segments); err != nil {
		return err
	}
	i.logger.Info("imported roads", zap.String("region", region), zap.Int("segments", len(segments)))
	return nil
}
