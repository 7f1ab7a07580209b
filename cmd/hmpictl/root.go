package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/water-quality-etl/internal/aggregate"
	"github.com/couchcryptid/water-quality-etl/internal/config"
	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/ingest"
	"github.com/couchcryptid/water-quality-etl/internal/observability"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:           "hmpictl",
	Short:         "Heavy-metal pollution indices for water samples",
	Long:          `hmpictl computes HPI, HEI and contamination degree for sample CSV files, prints collection reports and estimates health risk.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if v.GetBool("no_color") {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.PersistentFlags()
	f.String("config", "", "config file (yaml)")
	f.String("standards", "", "standards table file (default is the built-in table)")
	f.Int("chunk-size", ingest.DefaultChunkSize, "rows per ingestion chunk")
	f.String("log-level", "warn", "log level for ingestion diagnostics")
	f.Bool("no-color", false, "disable colored output")

	_ = v.BindPFlag("config", f.Lookup("config"))
	_ = v.BindPFlag("standards", f.Lookup("standards"))
	_ = v.BindPFlag("chunk_size", f.Lookup("chunk-size"))
	_ = v.BindPFlag("log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("no_color", f.Lookup("no-color"))

	rootCmd.AddCommand(assessCmd, reportCmd, exportCmd, riskCmd, templateCmd)
}

// initConfig applies precedence flags > HMPI_* env > config file > defaults.
func initConfig() {
	v.SetEnvPrefix("HMPI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: failed to read config: %v\n", err)
		}
	}
}

func loadStandards() (*domain.StandardsTable, error) {
	return config.LoadStandards(v.GetString("standards"))
}

// newLogger writes diagnostics to stderr so stdout stays pipeable.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openInput opens a file argument, or stdin for "-".
func openInput(arg string) (io.ReadCloser, error) {
	if arg == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(arg)
}

// openOutput creates a file, or returns the command's stdout for "" and "-".
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// collect ingests the CSV at arg into a fresh aggregator.
func collect(cmd *cobra.Command, arg string) (*aggregate.Aggregator, ingest.Result, error) {
	standards, err := loadStandards()
	if err != nil {
		return nil, ingest.Result{}, err
	}

	in, err := openInput(arg)
	if err != nil {
		return nil, ingest.Result{}, err
	}
	defer in.Close()

	tbl, err := ingest.ReadCSV(in)
	if err != nil {
		return nil, ingest.Result{}, err
	}

	agg := aggregate.New()
	ing := ingest.NewIngestor(standards, agg, observability.NewMetricsWithRegistry(nil), newLogger(cmd.ErrOrStderr()),
		ingest.WithChunkSize(v.GetInt("chunk_size")))
	res, err := ing.Ingest(cmd.Context(), tbl)
	if err != nil {
		return nil, res, err
	}
	return agg, res, nil
}

var (
	good     = color.New(color.FgGreen)
	warn     = color.New(color.FgYellow)
	bad      = color.New(color.FgRed)
	critical = color.New(color.FgRed, color.Bold)
)

func bandColor(b domain.Band) *color.Color {
	switch b {
	case domain.BandExcellent, domain.BandGood, domain.BandAcceptable, domain.BandLow:
		return good
	case domain.BandPoor, domain.BandModerate:
		return warn
	case domain.BandVeryPoor:
		return critical
	default:
		return bad
	}
}

func riskColor(b domain.RiskBand) *color.Color {
	switch b {
	case domain.RiskLow:
		return good
	case domain.RiskModerate:
		return warn
	case domain.RiskHigh:
		return bad
	default:
		return critical
	}
}

func printSkips(w io.Writer, res ingest.Result) {
	if res.Skipped == 0 {
		return
	}
	warn.Fprintf(w, "⚠ %d of %d rows skipped\n", res.Skipped, res.Total)
	for _, s := range res.Skips {
		fmt.Fprintf(w, "  row %d: %s\n", s.Row, s.Reason)
	}
}
