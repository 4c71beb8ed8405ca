package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/atrai/atrai-backend-go/internal/analysis"
	"github.com/atrai/atrai-backend-go/internal/config"
	"github.com/atrai/atrai-backend-go/internal/database"
	"github.com/atrai/atrai-backend-go/internal/logging"
	"github.com/atrai/atrai-backend-go/internal/models"
	"github.com/atrai/atrai-backend-go/internal/service"
)

func main() {
	name := flag.String("analyzer", "", "registered analyzer to run ("+strings.Join(analysis.AnalyzerNames(), ", ")+")")
	campaign := flag.String("campaign", "", "campaign (grouptag) to analyze")
	boxes := flag.String("boxes", "", "comma separated box ids, wins over -campaign")
	tStart := flag.String("t_start", "", "inclusive start time")
	tEnd := flag.String("t_end", "", "exclusive end time")
	colCreate := flag.Bool("col_create", false, "register the output collection")
	flag.Parse()

	if *name == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Debug)
	defer logger.Sync()

	if err := run(cfg, logger, *name, models.ProcessRequest{
		Campaign:  *campaign,
		BoxIDs:    splitList(*boxes),
		TStart:    *tStart,
		TEnd:      *tEnd,
		ColCreate: *colCreate,
	}); err != nil {
		logger.Fatal("analysis failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, name string, req models.ProcessRequest) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Config{Path: cfg.DBPath, Logger: logger})
	if err != nil {
		return err
	}
	defer db.Close()

	container, err := service.NewContainer(ctx, db, cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	task, err := container.Tasks.Execute(ctx, name, req, "cli")
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	fmt.Println(string(out))

	if task.Status != models.TaskStatusCompleted {
		return fmt.Errorf("task %d %s: %s", task.ID, task.Status, task.ErrorMessage)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
