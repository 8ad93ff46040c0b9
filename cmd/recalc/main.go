// Package main implements the recalc CLI: a one-shot batch recompute over
// the configured databases, with a human-readable summary table. Used by
// operators after importing new formulas or cut data.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/geobukschool/jungsi-engine/internal/config"
	"github.com/geobukschool/jungsi-engine/internal/database"
	"github.com/geobukschool/jungsi-engine/internal/modules/admissions"
	"github.com/geobukschool/jungsi-engine/internal/modules/batch"
	"github.com/geobukschool/jungsi-engine/internal/modules/formula"
	"github.com/geobukschool/jungsi-engine/internal/modules/results"
	"github.com/geobukschool/jungsi-engine/internal/modules/students"
	"github.com/geobukschool/jungsi-engine/pkg/logger"
)

func main() {
	var (
		studentsFlag = flag.String("students", "", "comma-separated student ids (empty with -all recomputes everyone)")
		allFlag      = flag.Bool("all", false, "recompute every student for the exam year")
		yearFlag     = flag.Int("year", 0, "exam year (defaults to JUNGSI_EXAM_YEAR)")
		cutYearFlag  = flag.Int("cut-year", 0, "cut data year (defaults to exam year - 1)")
		workersFlag  = flag.Int("workers", 0, "worker count (defaults to JUNGSI_CONCURRENCY)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	studentIDs, err := parseStudentIDs(*studentsFlag)
	if err != nil {
		color.Red("Invalid -students value: %v", err)
		os.Exit(1)
	}
	if len(studentIDs) == 0 && !*allFlag {
		color.Red("Nothing to do: pass -students or -all")
		flag.Usage()
		os.Exit(1)
	}

	examYear := *yearFlag
	if examYear == 0 {
		examYear = cfg.ExamYear
	}
	workers := *workersFlag
	if workers == 0 {
		workers = cfg.Concurrency
	}

	studentsDB, err := database.New(database.Config{
		Path: cfg.StudentsDBPath(), Profile: database.ProfileStandard, Name: "students",
	})
	if err != nil {
		color.Red("Failed to open students.db: %v", err)
		os.Exit(1)
	}
	defer studentsDB.Close()

	catalogDB, err := database.New(database.Config{
		Path: cfg.CatalogDBPath(), Profile: database.ProfileStandard, Name: "catalog",
	})
	if err != nil {
		color.Red("Failed to open catalog.db: %v", err)
		os.Exit(1)
	}
	defer catalogDB.Close()

	resultsDB, err := database.New(database.Config{
		Path: cfg.ResultsDBPath(), Profile: database.ProfileDerived, Name: "results",
	})
	if err != nil {
		color.Red("Failed to open results.db: %v", err)
		os.Exit(1)
	}
	defer resultsDB.Close()

	if err := resultsDB.Migrate(); err != nil {
		color.Red("Failed to migrate results.db: %v", err)
		os.Exit(1)
	}

	// A broken definition file is the one fatal input: everything else is
	// reported per student in the summary.
	registry := formula.NewRegistry(log)
	if err := registry.LoadFile(cfg.FormulaPath); err != nil {
		color.Red("Failed to load formula definitions: %v", err)
		os.Exit(1)
	}

	orchestrator := batch.NewOrchestrator(
		students.NewRepository(studentsDB.Conn(), log),
		admissions.NewRepository(catalogDB.Conn(), log),
		results.NewRepository(resultsDB.Conn(), log),
		registry,
		nil,
		workers,
		log,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	color.Cyan("Recomputing (registry %s, %d formulas, %d workers)...",
		registry.Version(), registry.Count(), workers)

	summary, err := orchestrator.Run(ctx, batch.Options{
		StudentIDs:  studentIDs,
		ExamYear:    examYear,
		CutDataYear: *cutYearFlag,
	})
	if err != nil {
		color.Red("Batch run failed: %v", err)
		os.Exit(1)
	}

	printSummary(summary)
}

// parseStudentIDs parses a comma-separated id list.
func parseStudentIDs(value string) ([]int64, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a student id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// printSummary renders the run summary. Per-student and per-pair failures
// are informational: the exit code stays zero because the run itself
// completed.
func printSummary(summary batch.Summary) {
	if summary.Cancelled {
		color.Yellow("\nRun cancelled after %d of %d students",
			summary.StudentsDone+summary.StudentsFailed, summary.StudentsTotal)
	} else {
		color.Green("\nRun %s completed", summary.RunID)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Students total", strconv.Itoa(summary.StudentsTotal)})
	table.Append([]string{"Students done", strconv.Itoa(summary.StudentsDone)})
	table.Append([]string{"Students failed", strconv.Itoa(summary.StudentsFailed)})
	table.Append([]string{"Pairs written", strconv.Itoa(summary.PairsWritten)})
	table.Append([]string{"Pairs skipped", strconv.Itoa(summary.PairsSkipped)})
	table.Append([]string{"Registry version", summary.RegistryVersion})
	table.Append([]string{"Elapsed", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String()})
	table.Render()

	if len(summary.Reasons) > 0 {
		color.Yellow("\nSkip and failure reasons")
		reasons := make([]string, 0, len(summary.Reasons))
		for reason := range summary.Reasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)

		reasonTable := tablewriter.NewWriter(os.Stdout)
		reasonTable.SetHeader([]string{"Reason", "Count"})
		for _, reason := range reasons {
			reasonTable.Append([]string{reason, strconv.Itoa(summary.Reasons[reason])})
		}
		reasonTable.Render()
	}
}
