package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/classvsoftware/t3api-utils/pkg/client"
	"github.com/classvsoftware/t3api-utils/pkg/export"
	"github.com/classvsoftware/t3api-utils/pkg/export/pgstore"
	"github.com/classvsoftware/t3api-utils/pkg/pagination"
)

type collectionOptions struct {
	license     string
	pageSize    int
	sort        string
	filters     []string
	filterLogic string
	strict      bool
	workers     int
	rateLimit   float64
	batchSize   int
	strategy    string
	format      string
	out         string
	stripEmpty  bool
	postgresDSN string
	noProgress  bool
}

func newCollectionCmd(a *app) *cobra.Command {
	opts := &collectionOptions{}

	cmd := &cobra.Command{
		Use:   "collection <endpoint>",
		Short: "Load every page of a collection endpoint and export it",
		Long: `Load every page of a collection endpoint, e.g. /v2/packages/active,
for one license and write the records to a file or PostgreSQL.

Page 1 is fetched first to learn the total; the remaining pages are fetched
in parallel, either by a fixed worker pool (--strategy pool) or in batches
of concurrent requests (--strategy batched). Any failed page fails the load.`,
		Example: `  t3 collection /v2/packages/active --license LIC-0001 --format csv
  t3 collection /v2/plants/vegetative --filter "strainName__contains:OG" --workers 4
  t3 collection /v2/transfers/incoming --strategy batched --batch-size 5 --rate-limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCollection(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.license, "license", "l", "", "License number (prompted when omitted)")
	f.IntVar(&opts.pageSize, "page-size", 0, "Records per page (default from config)")
	f.StringVar(&opts.sort, "sort", "", "Sort expression, e.g. label:asc")
	f.StringArrayVar(&opts.filters, "filter", nil, "Filter expression (repeatable)")
	f.StringVar(&opts.filterLogic, "filter-logic", client.DefaultFilterLogic, "Combine filters with and|or")
	f.BoolVar(&opts.strict, "strict", false, "Request strict pagination")
	f.IntVarP(&opts.workers, "workers", "w", 0, "Worker pool size (default from config)")
	f.Float64Var(&opts.rateLimit, "rate-limit", 0, "Max page requests per second (default from config)")
	f.IntVar(&opts.batchSize, "batch-size", 0, "Pages per batch for --strategy batched (0 = all at once)")
	f.StringVar(&opts.strategy, "strategy", "", "Loader strategy: pool|batched (default from config)")
	f.StringVarP(&opts.format, "format", "f", "json", "Output format: json|csv|postgres")
	f.StringVarP(&opts.out, "out", "o", ".", "Output directory")
	f.BoolVar(&opts.stripEmpty, "strip-empty", false, "Drop CSV columns that are empty in every record")
	f.StringVar(&opts.postgresDSN, "dsn", "", "PostgreSQL DSN for --format postgres (default from config)")
	f.BoolVar(&opts.noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}

func (a *app) runCollection(cmd *cobra.Command, endpoint string, opts *collectionOptions) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	format := opts.format
	switch format {
	case string(export.FormatJSON), string(export.FormatCSV), "postgres":
	default:
		return fmt.Errorf("unsupported format %q (want json, csv or postgres)", format)
	}
	dsn := opts.postgresDSN
	if dsn == "" {
		dsn = a.cfg.PostgresDSN
	}
	if format == "postgres" && dsn == "" {
		return fmt.Errorf("--format postgres needs --dsn or postgres_dsn in the config")
	}

	if flags.Changed("rate-limit") {
		a.cfg.RateLimit = opts.rateLimit
	}

	c, err := a.newClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	license := opts.license
	if license == "" {
		licenses, err := c.GetLicenses(ctx)
		if err != nil {
			return fmt.Errorf("list licenses: %w", err)
		}
		picked, err := a.pickLicense(licenses)
		if err != nil {
			return err
		}
		license = picked.LicenseNumber
	}

	query := client.CollectionQuery{
		LicenseNumber:    license,
		PageSize:         a.cfg.PageSize,
		Sort:             opts.sort,
		Filters:          opts.filters,
		FilterLogic:      opts.filterLogic,
		StrictPagination: opts.strict,
	}
	if flags.Changed("page-size") {
		query.PageSize = opts.pageSize
	}

	loader := a.cfg.LoaderConfig()
	if flags.Changed("workers") {
		loader.MaxConcurrency = opts.workers
	}
	if flags.Changed("batch-size") {
		loader.BatchSize = opts.batchSize
	}
	if flags.Changed("strategy") {
		loader.Strategy = pagination.Strategy(opts.strategy)
	}

	var progress *pageProgress
	if !opts.noProgress {
		progress = newPageProgress(endpoint)
		loader.OnProgress = progress.Update
	}

	start := time.Now()
	records, err := c.LoadCollection(ctx, endpoint, query, loader)
	if progress != nil {
		progress.Finish()
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", endpoint, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Loaded %d records from %s in %s\n", len(records), endpoint, time.Since(start).Round(time.Millisecond))

	name := export.CollectionName(endpoint)
	if format == "postgres" {
		return a.exportPostgres(ctx, dsn, name, records)
	}

	path, err := export.Save(records, name, license, export.Format(format), export.Options{
		Dir:        opts.out,
		StripEmpty: opts.stripEmpty,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func (a *app) exportPostgres(ctx context.Context, dsn, table string, records []client.Record) error {
	store, err := pgstore.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.LoadRecords(ctx, table, records)
	if err != nil {
		return err
	}
	for name, n := range counts {
		fmt.Fprintf(a.out, "%s: %d rows\n", name, n)
	}

	schema, err := store.ExportSchema(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, schema)
	return nil
}
