package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raysh454/repscan/internal/app"
	"github.com/raysh454/repscan/internal/logging"
	"github.com/raysh454/repscan/internal/source"
)

type scanOptions struct {
	configPath   string
	sourceKind   string
	sourcePath   string
	dsn          string
	crawlDepth   int
	sinks        []string
	csvPath      string
	sqlitePath   string
	xlsxPath     string
	quota        int
	baseURL      string
	progressAddr string
	logLevel     string
	unresolved   bool
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Submit URLs for analysis and record a verdict for each",
		Long: "Scans each URL in order, pacing provider calls to the configured quota.\n" +
			"Positional URLs select the static source. Results are appended to the configured sinks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(opts, cmd.Flags(), args, os.Getenv)
			if err != nil {
				return err
			}
			logger := logging.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, "repscan")
			a := app.NewApplication(cfg, logger, cmd.OutOrStdout())
			_, err = a.Run(cmd.Context())
			return err
		},
	}

	bindScanFlags(cmd.Flags(), opts)
	return cmd
}

func bindScanFlags(f *pflag.FlagSet, opts *scanOptions) {
	f.StringVar(&opts.configPath, "config", "", "YAML config file")
	f.StringVar(&opts.sourceKind, "source", "", "URL source: static|file|sqlite|postgres|html|crawl")
	f.StringVar(&opts.sourcePath, "source-path", "", "File, database or HTML path, or the crawl start URL")
	f.StringVar(&opts.dsn, "dsn", "", "Database DSN for sqlite/postgres sources (env REPSCAN_DB_DSN)")
	f.IntVar(&opts.crawlDepth, "crawl-depth", 0, "Same-host hops followed by the crawl source")
	f.StringSliceVar(&opts.sinks, "sink", nil, "Result sink: console|csv|sqlite|xlsx (repeatable)")
	f.StringVar(&opts.csvPath, "csv", "", "CSV results path")
	f.StringVar(&opts.sqlitePath, "sqlite", "", "SQLite results path")
	f.StringVar(&opts.xlsxPath, "xlsx", "", "XLSX results path")
	f.IntVar(&opts.quota, "quota", 0, "Provider calls per minute (env REPSCAN_QUOTA)")
	f.StringVar(&opts.baseURL, "base-url", "", "Provider API root (env REPSCAN_BASE_URL)")
	f.StringVar(&opts.progressAddr, "progress-addr", "", "Serve the progress API on this address")
	f.StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error")
	f.BoolVar(&opts.unresolved, "count-unresolved-as-scanned", false, "Record URLs without a final report as Scanned")
}

// resolveConfig layers defaults, the config file, .env, the environment
// and finally explicitly set flags.
func resolveConfig(opts *scanOptions, flags *pflag.FlagSet, args []string, getenv func(string) string) (*app.Config, error) {
	if err := app.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Source.Kind = source.KindStatic
		cfg.Source.URLs = args
	}
	if flags.Changed("source") {
		cfg.Source.Kind = opts.sourceKind
	}
	if flags.Changed("source-path") {
		cfg.Source.Path = opts.sourcePath
	}
	if flags.Changed("dsn") {
		cfg.Source.DSN = opts.dsn
	}
	if flags.Changed("crawl-depth") {
		cfg.Source.Depth = opts.crawlDepth
	}
	if flags.Changed("sink") {
		cfg.Sink.Kinds = opts.sinks
	}
	if flags.Changed("csv") {
		cfg.Sink.CSVPath = opts.csvPath
	}
	if flags.Changed("sqlite") {
		cfg.Sink.SQLitePath = opts.sqlitePath
	}
	if flags.Changed("xlsx") {
		cfg.Sink.XLSXPath = opts.xlsxPath
	}
	if flags.Changed("quota") {
		cfg.Quota = opts.quota
	}
	if flags.Changed("base-url") {
		cfg.Provider.BaseURL = opts.baseURL
	}
	if flags.Changed("progress-addr") {
		cfg.ProgressAddr = opts.progressAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("count-unresolved-as-scanned") {
		cfg.CountUnresolvedAsScanned = opts.unresolved
	}
	return cfg, cfg.Validate()
}
