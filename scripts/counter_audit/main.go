package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/repository"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/database"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
)

// counter_audit recounts the enrollment counter of every offering from the
// ledger and repairs drift, printing one line per offering.
func main() {
	var (
		semesterID string
		onlyDrift  bool
		timeout    time.Duration
	)
	flag.StringVar(&semesterID, "semester", "", "Semester ID to audit (default: every semester)")
	flag.BoolVar(&onlyDrift, "only-drift", false, "Print only offerings whose counter drifted")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Overall audit timeout")
	flag.Parse()

	if failed := run(semesterID, onlyDrift, timeout); failed > 0 {
		os.Exit(1)
	}
}

func run(semesterID string, onlyDrift bool, timeout time.Duration) int {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	catalog := repository.NewCatalogRepository(db)
	worker := service.NewReconcileWorker(repository.NewEnrollmentRepository(db), nil, nil, cfg.Enrollment.TxTimeout, logr)

	offerings, err := catalog.ListOfferings(ctx, models.OfferingFilter{SemesterID: semesterID})
	if err != nil {
		logr.Fatal("failed to list offerings", zap.Error(err))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OFFERING\tCOURSE\tSEMESTER\tCACHED\tLEDGER\tREPAIRED\tDRIFT")

	var drifted, failed int
	for _, offering := range offerings {
		drift, err := worker.Reconcile(ctx, offering.ID)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s\t%s\t%s\t-\t-\t-\terror: %v\n", offering.ID, offering.CourseCode, offering.SemesterName, err)
			continue
		}
		if drift.Drift() != 0 {
			drifted++
		} else if onlyDrift {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%+d\n",
			offering.ID, offering.CourseCode, offering.SemesterName,
			drift.CachedCount, drift.LedgerCount, drift.RepairedCount, drift.Drift())
	}
	_ = w.Flush()

	fmt.Printf("\nAudited %d offerings: %d drifted, %d failed\n", len(offerings), drifted, failed)
	return failed
}
