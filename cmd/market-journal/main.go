// Command market-journal inspects the committed-event journal written by
// marketd: it verifies the digest chain and exports entries to parquet.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/merlox/ethereum-store/observability/journal"
	"github.com/merlox/ethereum-store/observability/logging"
)

type options struct {
	dsn    string
	verify bool
	export string
	after  uint64
}

func main() {
	var opts options
	flag.StringVar(&opts.dsn, "dsn", "", "journal DSN (SQLite path or postgres:// URL)")
	flag.BoolVar(&opts.verify, "verify", false, "recompute the digest chain")
	flag.StringVar(&opts.export, "export", "", "write entries to this parquet file")
	flag.Uint64Var(&opts.after, "after", 0, "export only entries with a sequence above this value")
	flag.Parse()

	logger := logging.Setup("market-journal", os.Getenv("MARKET_ENV"), logging.Config{Level: "warn"})
	if err := run(opts, os.Stdout, logger); err != nil {
		fmt.Fprintf(os.Stderr, "market-journal: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, out io.Writer, logger *slog.Logger) error {
	if strings.TrimSpace(opts.dsn) == "" {
		return errors.New("-dsn is required")
	}
	if !opts.verify && opts.export == "" {
		return errors.New("nothing to do: pass -verify and/or -export")
	}
	j, err := journal.Open(opts.dsn, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	if opts.verify {
		checked, err := j.Verify()
		if err != nil {
			return fmt.Errorf("verify after %d entries: %w", checked, err)
		}
		fmt.Fprintf(out, "verified %d entries\n", checked)
	}
	if opts.export != "" {
		rows, err := j.ExportParquet(opts.export, opts.after)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "exported %d entries to %s\n", rows, opts.export)
	}
	return nil
}
