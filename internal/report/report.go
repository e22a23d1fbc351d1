// Package report assembles and renders a human-readable summary of the
// stored dataset: totals, quality ratios, and provider analytics.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"personpipe/internal/person"
	"personpipe/internal/quality"
	"personpipe/internal/store"
)

// Analytics parameters match the questions the report answers about
// provider adoption.
const (
	focusProvider = "gmail.com"
	focusCountry  = "Germany"
	seniorAge     = 60
	topCountries  = 3
)

// Source is the slice of the store the report reads from.
type Source interface {
	Count(ctx context.Context) (int64, error)
	Snapshot(ctx context.Context) ([]person.AnonymizedPerson, error)
	ProviderShareInCountry(ctx context.Context, provider, country string) (store.ProviderShare, error)
	CountProviderAtLeastAge(ctx context.Context, provider string, minAge int) (int64, error)
	TopCountriesByProvider(ctx context.Context, provider string, limit int) ([]store.CountryCount, error)
}

// Scorer computes the quality snapshot included in the report.
type Scorer interface {
	Score(rows []person.AnonymizedPerson) (quality.Snapshot, error)
}

// Data holds everything a rendered report shows.
type Data struct {
	TotalRecords int64

	Snapshot quality.Snapshot
	Scored   bool

	ProviderShare   store.ProviderShare
	ProviderSeniors int64
	TopCountries    []store.CountryCount
}

// Collect gathers report data from the store. An unscorable dataset still
// produces a report; the quality section is just marked absent.
func Collect(ctx context.Context, source Source, scorer Scorer) (Data, error) {
	var data Data

	count, err := source.Count(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("report: %w", err)
	}
	data.TotalRecords = count

	rows, err := source.Snapshot(ctx)
	if err != nil {
		return Data{}, fmt.Errorf("report: %w", err)
	}
	snap, err := scorer.Score(rows)
	switch {
	case errors.Is(err, quality.ErrInsufficientData):
		// Leave the quality section empty.
	case err != nil:
		return Data{}, fmt.Errorf("report: %w", err)
	default:
		data.Snapshot = snap
		data.Scored = true
	}

	data.ProviderShare, err = source.ProviderShareInCountry(ctx, focusProvider, focusCountry)
	if err != nil {
		return Data{}, fmt.Errorf("report: %w", err)
	}
	data.ProviderSeniors, err = source.CountProviderAtLeastAge(ctx, focusProvider, seniorAge)
	if err != nil {
		return Data{}, fmt.Errorf("report: %w", err)
	}
	data.TopCountries, err = source.TopCountriesByProvider(ctx, focusProvider, topCountries)
	if err != nil {
		return Data{}, fmt.Errorf("report: %w", err)
	}
	return data, nil
}

// Render writes the report to w.
func Render(w io.Writer, data Data) error {
	printer := message.NewPrinter(language.English)

	if _, err := fmt.Fprintln(w, "Dataset"); err != nil {
		return err
	}
	summary := [][]string{
		{"Records", printer.Sprintf("%d", data.TotalRecords)},
	}
	if data.Scored {
		summary = append(summary,
			[]string{"Valid records", printer.Sprintf("%d", data.Snapshot.ValidRecords)},
			[]string{"Overall quality", fmt.Sprintf("%.3f", data.Snapshot.OverallScore)},
			[]string{"PII masking", fmt.Sprintf("%.3f", data.Snapshot.PIIMasking)},
		)
	} else {
		summary = append(summary, []string{"Overall quality", "n/a (dataset too small)"})
	}
	if _, err := fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, summary, []columnAlignment{alignLeft, alignRight})); err != nil {
		return err
	}

	if data.Scored {
		if _, err := fmt.Fprintln(w, "\nField quality"); err != nil {
			return err
		}
		fieldRows := make([][]string, 0, len(quality.ScoredFields))
		for _, field := range sortedFields(data.Snapshot) {
			fieldRows = append(fieldRows, []string{
				field,
				fmt.Sprintf("%.3f", data.Snapshot.Completeness[field]),
				fmt.Sprintf("%.3f", data.Snapshot.Uniqueness[field]),
				fmt.Sprintf("%.3f", data.Snapshot.FormatValidity[field]),
			})
		}
		aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight}
		if _, err := fmt.Fprintln(w, renderTable([]string{"Field", "Completeness", "Uniqueness", "Format"}, fieldRows, aligns)); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "\nProvider analytics (%s)\n", focusProvider); err != nil {
		return err
	}
	analytics := [][]string{
		{fmt.Sprintf("Share in %s", focusCountry), fmt.Sprintf("%.1f%%", data.ProviderShare.Share()*100)},
		{fmt.Sprintf("Users aged %d+", seniorAge), printer.Sprintf("%d", data.ProviderSeniors)},
	}
	for i, cc := range data.TopCountries {
		analytics = append(analytics, []string{
			fmt.Sprintf("Top country #%d", i+1),
			printer.Sprintf("%s (%d)", cc.Country, cc.Count),
		})
	}
	if _, err := fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, analytics, []columnAlignment{alignLeft, alignRight})); err != nil {
		return err
	}
	return nil
}

// sortedFields returns the scored fields in stable display order.
func sortedFields(snap quality.Snapshot) []string {
	fields := make([]string, 0, len(snap.Completeness))
	for field := range snap.Completeness {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(aligns))
	for i, a := range aligns {
		align := text.AlignLeft
		if a == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
