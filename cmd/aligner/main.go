package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pitalign/internal/app"
	"pitalign/internal/config"
	"pitalign/internal/exporter"
	"pitalign/internal/feeds"
	"pitalign/internal/infrastructure"
	"pitalign/internal/middleware"
	"pitalign/pkg/contracts"
	"pitalign/pkg/contracts/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command-line flags
type options struct {
	configPath string
	feed       string
	dates      string
	start      string
	days       int
	calendarTZ string
	entities   string
	out        string
	splitDir   string
	version    bool
	params     feeds.Params
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var (
		opts   options
		shift  int
		ffill  string
		fields string
		codes  string
	)

	fs := flag.NewFlagSet("aligner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to config.yaml (defaults to ./config.yaml when present)")
	fs.StringVar(&opts.feed, "feed", "", "feed to align (see -feed list)")
	fs.StringVar(&opts.dates, "dates", "", "comma-separated calendar dates, e.g. 2018-05-01,2018-05-02")
	fs.StringVar(&opts.start, "start", "", "first calendar date when -dates is not given (YYYY-MM-DD)")
	fs.IntVar(&opts.days, "days", 1, "number of consecutive calendar days from -start")
	fs.StringVar(&opts.calendarTZ, "calendar-tz", "", "IANA zone the calendar dates are expressed in")
	fs.StringVar(&opts.entities, "entities", "", "comma-separated entity identifiers")
	fs.StringVar(&fields, "fields", "", "comma-separated fields to return")
	fs.StringVar(&codes, "codes", "", "comma-separated indicator or COA codes")
	fs.IntVar(&shift, "shift", -1, "periods to shift values forward (-1 uses the feed default)")
	fs.StringVar(&ffill, "ffill", "", "forward-fill values: true or false (empty uses the feed default)")
	fs.StringVar(&opts.params.MaxLag, "max-lag", "", "mask values older than this, e.g. 5D or 2W")
	fs.IntVar(&opts.params.PeriodOffset, "period-offset", 0, "fiscal period offset relative to the latest period (0 or negative)")
	fs.StringVar(&opts.params.Timezone, "tz", "", "timezone to interpret fact timestamps in")
	fs.StringVar(&opts.params.Time, "time", "", "as-of clock, e.g. \"09:30:00 America/New_York\"")
	fs.BoolVar(&opts.params.Aggregate, "aggregate", false, "aggregate intraday rows to one row per day")
	fs.Func("option", "feed option name=v1,v2 (repeatable)", func(s string) error {
		name, values, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return fmt.Errorf("option must be name=value[,value], got %q", s)
		}
		if opts.params.Options == nil {
			opts.params.Options = make(map[string][]string)
		}
		opts.params.Options[name] = append(opts.params.Options[name], splitList(values)...)
		return nil
	})
	fs.StringVar(&opts.out, "out", "", "output file (.csv, .xlsx or .json); stdout CSV when empty")
	fs.StringVar(&opts.splitDir, "split-dir", "", "also write one CSV per entity into this directory")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.params.Fields = splitList(fields)
	opts.params.Codes = splitList(codes)
	if shift >= 0 {
		opts.params.Shift = &shift
	}
	if ffill != "" {
		v, err := strconv.ParseBool(ffill)
		if err != nil {
			return nil, fmt.Errorf("invalid -ffill %q: %w", ffill, err)
		}
		opts.params.ForwardFill = &v
	}
	return &opts, nil
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

// calendar builds the target calendar from -dates or -start/-days
func (o *options) calendar() (domain.TargetCalendar, error) {
	entities := splitList(o.entities)
	if len(entities) == 0 {
		return domain.TargetCalendar{}, fmt.Errorf("-entities is required")
	}

	var cal domain.TargetCalendar
	switch {
	case o.dates != "":
		var dates []time.Time
		for _, s := range splitList(o.dates) {
			t, err := middleware.ParseISO8601(s)
			if err != nil {
				return cal, err
			}
			dates = append(dates, t)
		}
		cal = domain.TargetCalendar{IndexNames: []string{domain.DateIndexName}, Dates: dates, Entities: entities}
	case o.start != "":
		start, err := middleware.ParseISO8601(o.start)
		if err != nil {
			return cal, err
		}
		if o.days < 1 {
			return cal, fmt.Errorf("-days must be at least 1")
		}
		cal = domain.NewDailyCalendar(start, o.days, entities...)
	default:
		return cal, fmt.Errorf("either -dates or -start is required")
	}

	if o.calendarTZ != "" {
		loc, err := time.LoadLocation(o.calendarTZ)
		if err != nil {
			return cal, fmt.Errorf("unknown -calendar-tz %q: %w", o.calendarTZ, err)
		}
		cal = cal.InLocation(loc)
	}
	return cal, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}
	if opts.feed == "list" {
		for _, name := range feeds.Default.Names() {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}
	if opts.feed == "" {
		return fmt.Errorf("-feed is required")
	}

	cal, err := opts.calendar()
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	// metrics are served by the server only
	cfg.Observability.MetricExporter = "none"

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close(context.WithoutCancel(ctx))

	result, err := feeds.Align(ctx, application.Deps(), opts.feed, cal, opts.params)
	if err != nil {
		return err
	}

	results := exporter.NewResultExporter("")
	if opts.splitDir != "" {
		if err := results.ExportEntityFiles(result, opts.splitDir); err != nil {
			return err
		}
		logger.InfoContext(ctx, "wrote per-entity files",
			slog.String("dir", opts.splitDir),
			slog.Int("entities", len(result.Entities)))
	}
	if opts.out == "" {
		return results.WriteCSV(stdout, result)
	}
	if err := results.Export(result, opts.out); err != nil {
		return err
	}
	logger.InfoContext(ctx, "wrote aligned result",
		slog.String("feed", result.Feed),
		slog.String("path", opts.out),
		slog.Int("dates", len(result.Dates)),
		slog.Int("entities", len(result.Entities)))
	return nil
}
