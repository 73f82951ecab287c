// Package report renders aggregate rows for humans (text tables) and for
// downstream notebooks (CSV files). It is a thin presentation layer; all
// semantics live in the aggregators.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/keithsngth/wise-funnel-analysis/internal/aggregate"
)

// nullCell marks a missing value (no predecessor stage, zero denominator).
const nullCell = "-"

func formatRate(rate decimal.NullDecimal) string {
	if !rate.Valid {
		return nullCell
	}
	return rate.Decimal.StringFixed(2)
}

func formatCount(count *int) string {
	if count == nil {
		return nullCell
	}
	return strconv.Itoa(*count)
}

func funnelHeader(segmentBy []string) []string {
	header := append([]string{}, segmentBy...)
	return append(header,
		"stage", "user_count", "prev_stage_count",
		"conversion_rate", "drop_off_rate", "cumulative_conversion_rate")
}

func funnelRecord(row aggregate.FunnelRow) []string {
	record := append([]string{}, row.Segment...)
	return append(record,
		row.Stage.String(),
		strconv.Itoa(row.UserCount),
		formatCount(row.PrevStageCount),
		formatRate(row.ConversionRate),
		formatRate(row.DropOffRate),
		formatRate(row.CumulativeConversionRate))
}

func frictionHeader(segmentBy []string) []string {
	header := []string{"transition"}
	header = append(header, segmentBy...)
	return append(header, "user_id", "duration")
}

func frictionRecord(row aggregate.FrictionRow) []string {
	record := []string{row.Transition}
	record = append(record, row.Segment...)
	return append(record, row.UserID, row.Duration.String())
}

// RenderFunnel writes a funnel result as a text table.
func RenderFunnel(w io.Writer, title string, segmentBy []string, rows []aggregate.FunnelRow) {
	fmt.Fprintf(w, "\n%s\n", title)
	table := tablewriter.NewWriter(w)
	table.SetHeader(funnelHeader(segmentBy))
	for _, row := range rows {
		table.Append(funnelRecord(row))
	}
	table.Render()
}

// RenderFriction writes a friction result as a text table.
func RenderFriction(w io.Writer, title string, segmentBy []string, rows []aggregate.FrictionRow) {
	fmt.Fprintf(w, "\n%s\n", title)
	table := tablewriter.NewWriter(w)
	table.SetHeader(frictionHeader(segmentBy))
	for _, row := range rows {
		table.Append(frictionRecord(row))
	}
	table.Render()
}

func writeCSV(path string, header []string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFunnelCSV exports a funnel result to a CSV file.
func WriteFunnelCSV(path string, segmentBy []string, rows []aggregate.FunnelRow) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, funnelRecord(row))
	}
	return writeCSV(path, funnelHeader(segmentBy), records)
}

// WriteFrictionCSV exports a friction result to a CSV file.
func WriteFrictionCSV(path string, segmentBy []string, rows []aggregate.FrictionRow) error {
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, frictionRecord(row))
	}
	return writeCSV(path, frictionHeader(segmentBy), records)
}
