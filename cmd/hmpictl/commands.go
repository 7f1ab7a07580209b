package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/couchcryptid/water-quality-etl/internal/domain"
	"github.com/couchcryptid/water-quality-etl/internal/export"
	"github.com/spf13/cobra"
)

var assessCmd = &cobra.Command{
	Use:   "assess <file.csv|->",
	Short: "Compute indices and quality bands for every sample in a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, res, err := collect(cmd, args[0])
		if err != nil {
			return err
		}
		if res.Empty() {
			return fmt.Errorf("no valid data")
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "LOCATION\tDATE\tHPI\tHEI\tCD\tQUALITY")
		for _, s := range agg.Samples() {
			idx := s.Indices.Rounded()
			band := s.Bands().HPI
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%s\n",
				s.Location, s.Date, idx.HPI, idx.HEI, idx.Cd, bandColor(band).Sprint(band))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		good.Fprintf(out, "✓ %d of %d rows accepted\n", res.Accepted, res.Total)
		printSkips(cmd.ErrOrStderr(), res)
		return nil
	},
}

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report <file.csv|->",
	Short: "Summarize a CSV file: average HPI, distributions, trend and priorities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, res, err := collect(cmd, args[0])
		if err != nil {
			return err
		}
		report := agg.Report()
		out := cmd.OutOrStdout()

		if reportJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Fprintf(out, "Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Samples:   %d\n", report.Total)
		if report.Summary.Defined {
			fmt.Fprintf(out, "Avg HPI:   %.2f\n", report.Summary.AverageHPI)
		} else {
			fmt.Fprintln(out, "Avg HPI:   n/a")
		}

		fmt.Fprintln(out, "\nHPI distribution:")
		for _, b := range domain.HPIBands {
			fmt.Fprintf(out, "  %-10s %d\n", bandColor(b).Sprint(b), report.Distribution[domain.IndexHPI][b])
		}

		if trend := agg.Trend(); len(trend) > 0 {
			fmt.Fprintln(out, "\nMonthly trend:")
			for _, p := range trend {
				fmt.Fprintf(out, "  %s  %.2f (%d)\n", p.Month, p.AverageHPI, p.Count)
			}
		}

		if len(report.Priorities.Immediate) > 0 {
			critical.Fprintln(out, "\nImmediate attention:")
			for _, loc := range report.Priorities.Immediate {
				fmt.Fprintf(out, "  - %s\n", loc)
			}
		}
		if len(report.Priorities.Monitoring) > 0 {
			warn.Fprintln(out, "\nEnhanced monitoring:")
			for _, loc := range report.Priorities.Monitoring {
				fmt.Fprintf(out, "  - %s\n", loc)
			}
		}

		printSkips(cmd.ErrOrStderr(), res)
		return nil
	},
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <file.csv|->",
	Short: "Assess a CSV file and write the results as an export CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agg, res, err := collect(cmd, args[0])
		if err != nil {
			return err
		}
		out, err := openOutput(cmd, exportOut)
		if err != nil {
			return err
		}
		defer out.Close()

		if err := export.WriteCSV(out, agg.Samples()); err != nil {
			return err
		}
		printSkips(cmd.ErrOrStderr(), res)
		return nil
	},
}

var riskMetals = make(map[domain.Metal]*float64)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Estimate health risk for one set of concentrations (mg/L)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		standards, err := loadStandards()
		if err != nil {
			return err
		}

		var c domain.Concentrations
		for m, val := range riskMetals {
			c = c.With(m, *val)
		}
		if !c.Any() {
			return fmt.Errorf("at least one metal concentration must be greater than 0")
		}

		idx := domain.ComputeIndices(c, standards)
		risk := domain.AssessRisk(c, standards)
		bands := idx.Classify()
		r := idx.Rounded()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "HPI  %8.2f  %s\n", r.HPI, bandColor(bands.HPI).Sprint(bands.HPI))
		fmt.Fprintf(out, "HEI  %8.2f  %s\n", r.HEI, bandColor(bands.HEI).Sprint(bands.HEI))
		fmt.Fprintf(out, "Cd   %8.2f  %s\n", r.Cd, bandColor(bands.Cd).Sprint(bands.Cd))
		fmt.Fprintf(out, "Risk %8.1f  %s\n", risk.Score, riskColor(risk.Band).Sprint(risk.Band))
		for _, e := range risk.Exceedances {
			bad.Fprintf(out, "  %s exceeds its limit by %.1f%%\n", e.Metal, e.PercentOver)
		}
		return nil
	},
}

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a CSV template with the expected header and example rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := openOutput(cmd, templateOut)
		if err != nil {
			return err
		}
		defer out.Close()
		return export.WriteTemplate(out)
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
	templateCmd.Flags().StringVarP(&templateOut, "output", "o", "", "output file (default stdout)")

	for _, m := range domain.Metals() {
		riskMetals[m] = riskCmd.Flags().Float64(m.String(), 0, m.Title()+" concentration")
	}
}
