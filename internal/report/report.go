// Package report exports backtest runs as spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/rewired-gh/policytone/internal/models"
)

const (
	summarySheet   = "Summary"
	rowsSheet      = "Rows"
	confusionSheet = "Confusion"
)

var rowHeader = []string{
	"date", "document_id", "actual", "predicted", "correct", "method",
	"p_hike", "p_hold", "p_cut", "training_size",
}

func rowRecord(r models.BacktestRow) []string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', 6, 64) }
	return []string{
		models.DateKey(r.Date), r.DocumentID, string(r.Actual), string(r.Predicted),
		strconv.FormatBool(r.Correct), string(r.Method),
		f(r.Probabilities.Hike), f(r.Probabilities.Hold), f(r.Probabilities.Cut),
		strconv.Itoa(r.TrainingSize),
	}
}

// WriteCSV writes one line per replayed event.
func WriteCSV(run *models.BacktestRun, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rowHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range run.Rows {
		if err := cw.Write(rowRecord(r)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", models.DateKey(r.Date), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with summary, per-event and confusion sheets.
func WriteXLSX(run *models.BacktestRun, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if err := writeSummary(f, run); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := writeRows(f, run); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	if err := writeConfusion(f, run); err != nil {
		return fmt.Errorf("failed to write confusion matrix: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, run *models.BacktestRun) error {
	lines := [][]any{
		{"run_id", run.ID},
		{"parameter_version", run.ParameterVersion},
		{"start", models.DateKey(run.Start)},
		{"end", models.DateKey(run.End)},
		{"observations", run.Metrics.Observations},
		{"accuracy", run.Metrics.Accuracy},
		{"excluded", len(run.Excluded)},
		{"failed", len(run.Failures)},
	}

	years := make([]int, 0, len(run.Metrics.HitRatioByYear))
	for y := range run.Metrics.HitRatioByYear {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		lines = append(lines, []any{fmt.Sprintf("hit_ratio_%d", y), run.Metrics.HitRatioByYear[y]})
	}
	for _, d := range models.Decisions {
		cm := run.Metrics.PerClass[d]
		lines = append(lines,
			[]any{"precision_" + string(d), cm.Precision},
			[]any{"recall_" + string(d), cm.Recall},
			[]any{"support_" + string(d), cm.Support},
		)
	}
	for i, ex := range run.Excluded {
		lines = append(lines, []any{fmt.Sprintf("excluded_%d", i+1), models.DateKey(ex)})
	}
	for _, fl := range run.Failures {
		lines = append(lines, []any{"failure_" + fl.RecordID, fl.Message})
	}
	return setRows(f, summarySheet, lines)
}

func writeRows(f *excelize.File, run *models.BacktestRun) error {
	if _, err := f.NewSheet(rowsSheet); err != nil {
		return err
	}
	header := make([]any, len(rowHeader))
	for i, h := range rowHeader {
		header[i] = h
	}
	lines := [][]any{header}
	for _, r := range run.Rows {
		lines = append(lines, []any{
			models.DateKey(r.Date), r.DocumentID, string(r.Actual), string(r.Predicted), r.Correct,
			string(r.Method), r.Probabilities.Hike, r.Probabilities.Hold, r.Probabilities.Cut, r.TrainingSize,
		})
	}
	return setRows(f, rowsSheet, lines)
}

func writeConfusion(f *excelize.File, run *models.BacktestRun) error {
	if _, err := f.NewSheet(confusionSheet); err != nil {
		return err
	}
	lines := [][]any{{"actual \\ predicted", "hike", "hold", "cut"}}
	for i, d := range models.Decisions {
		c := run.Metrics.Confusion[i]
		lines = append(lines, []any{string(d), c[0], c[1], c[2]})
	}
	return setRows(f, confusionSheet, lines)
}

func setRows(f *excelize.File, sheet string, lines [][]any) error {
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return err
		}
	}
	return nil
}
