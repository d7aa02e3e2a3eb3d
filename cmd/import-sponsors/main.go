// Command import-sponsors loads a YAML sponsor file into the database.
//
// The file is validated through the same index the scorer builds, so a
// file that imports cleanly matches at request time. Merchant names that
// are already stored are left untouched. With -export the stored table is
// written to stdout in the same format instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/fanspend/internal/adapters/repository"
	"github.com/okian/fanspend/internal/config"
	"github.com/okian/fanspend/internal/domain/sponsor"
	"github.com/okian/fanspend/internal/sponsorfile"
	"github.com/okian/fanspend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		os.Stderr.WriteString("import-sponsors: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// report summarizes one import.
type report struct {
	Read       int
	Indexed    int
	Dropped    int
	Duplicates int
	Inserted   int
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fs := flag.NewFlagSet("import-sponsors", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		file       = fs.String("file", "sponsors.yaml", "YAML sponsor file")
		validation = fs.String("validation", cfg.SponsorValidation, "permissive drops malformed rows, strict rejects the file")
		duplicates = fs.String("duplicates", cfg.SponsorDuplicates, "which row wins for a repeated merchant: last or first")
		dryRun     = fs.Bool("dry-run", false, "validate only, do not write")
		export     = fs.Bool("export", false, "write the stored sponsors as YAML and exit")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logger.Named("import-sponsors")

	if *export {
		return exportSponsors(ctx, cfg, out)
	}

	idx, rep, err := load(*file,
		sponsor.WithValidation(sponsor.ParseMode(*validation)),
		sponsor.WithDuplicatePolicy(sponsor.ParseDuplicatePolicy(*duplicates)),
	)
	if err != nil {
		return err
	}

	if !*dryRun {
		store, err := repository.New(ctx, cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() { _ = store.Close() }()

		rep.Inserted, err = store.UpsertSponsors(ctx, idx.Entries())
		if err != nil {
			return fmt.Errorf("upsert sponsors: %w", err)
		}
	}

	log.Info(ctx, "sponsors imported",
		logger.String("file", *file),
		logger.Bool("dry_run", *dryRun),
		logger.Int("read", rep.Read),
		logger.Int("indexed", rep.Indexed),
		logger.Int("dropped", rep.Dropped),
		logger.Int("duplicates", rep.Duplicates),
		logger.Int("inserted", rep.Inserted))
	_, err = fmt.Fprintf(out, "read=%d indexed=%d dropped=%d duplicates=%d inserted=%d\n",
		rep.Read, rep.Indexed, rep.Dropped, rep.Duplicates, rep.Inserted)
	return err
}

// load reads path and builds the sponsor index from it.
func load(path string, opts ...sponsor.Option) (*sponsor.Index, report, error) {
	entries, err := sponsorfile.Read(path)
	if err != nil {
		return nil, report{}, fmt.Errorf("read %s: %w", path, err)
	}
	idx, err := sponsor.Build(entries, opts...)
	if err != nil {
		return nil, report{}, err
	}
	return idx, report{
		Read:       len(entries),
		Indexed:    idx.Len(),
		Dropped:    idx.Dropped(),
		Duplicates: idx.Duplicates(),
	}, nil
}

func exportSponsors(ctx context.Context, cfg *config.Config, out io.Writer) error {
	store, err := repository.New(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.ListSponsors(ctx)
	if err != nil {
		return fmt.Errorf("list sponsors: %w", err)
	}
	return sponsorfile.Encode(out, entries)
}
