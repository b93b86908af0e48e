package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/replay"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to violations.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/violations.db")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region modes

// runDBMode replays every stored cycle violation and checks the stored
// severity is reproduced.
func runDBMode(dbPath string) int {
	s, err := store.NewSQLiteStore(dbPath, nil, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer s.Close()

	records, err := s.GetAll(context.Background(), store.ListParams{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "query violations: %v\n", err)
		return 2
	}

	f := replay.FixtureFromRecords(dbPath, records)
	if len(f.Cycles) == 0 {
		fmt.Fprintln(os.Stderr, "no cycle violations found")
		return 2
	}
	return compare(&f)
}

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	return compare(f)
}

func compare(f *replay.Fixture) int {
	results := replay.Replay(f.ToCycles(), f.Config.ToReplayConfig())
	if replay.WriteComparison(os.Stdout, results, f.ExpectedResults) > 0 {
		return 1
	}
	return 0
}

// #endregion modes
