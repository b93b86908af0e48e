package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/replay"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to violations.db")
	last := flag.Int("last", 20, "number of most recent violations to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/violations.db --out path/to/fixture.json [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath string, last int, outPath string) error {
	s, err := store.NewSQLiteStore(dbPath, nil, zap.NewNop())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer s.Close()

	records, err := s.GetAll(context.Background(), store.ListParams{Limit: last})
	if err != nil {
		return fmt.Errorf("query violations: %w", err)
	}

	fixture := replay.FixtureFromRecords(
		fmt.Sprintf("exported from %s (last %d violations)", dbPath, last), records)
	if len(fixture.Cycles) == 0 {
		return fmt.Errorf("no cycle violations found in last %d records", last)
	}
	fmt.Printf("Found %d cycle violations\n", len(fixture.Cycles))

	return writeFixture(fixture, outPath)
}

// #endregion extract

// #region output

func writeFixture(f replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Printf("Wrote %s\n", outPath)
	return nil
}

// #endregion output
