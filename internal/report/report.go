// Package report exports a user's sheet progress as an XLSX workbook.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-sheets/internal/progress"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

// Workbook tab names.
const (
	SummaryTab  = "Summary"
	ProblemsTab = "Problems"
)

// ContentType is the MIME type of the written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	summaryHeader  = []any{"Section", "Subsection", "Total", "Completed", "Revision"}
	problemsHeader = []any{"Section", "Subsection", "Problem", "Difficulty", "Platform", "Completed", "Revision", "Practice link"}
)

// WriteSheetProgress writes a two-tab workbook: per-subsection counts from sum,
// and one row per problem reference in sh. sh should be read with expansion so
// problem titles are available.
func WriteSheetProgress(w io.Writer, sh sheet.Sheet, sum tracker.SheetSummary, records []progress.Progress) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(SummaryTab)
	if err != nil {
		return fmt.Errorf("create summary tab: %w", err)
	}
	f.SetActiveSheet(idx)
	if _, err := f.NewSheet(ProblemsTab); err != nil {
		return fmt.Errorf("create problems tab: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default tab: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, sum, bold); err != nil {
		return err
	}
	if err := writeProblems(f, sh, records, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, sum tracker.SheetSummary, headerStyle int) error {
	rows := [][]any{summaryHeader}
	for _, sec := range sum.Sections {
		for _, sub := range sec.Subsections {
			rows = append(rows, []any{sec.Name, sub.Name, sub.Total, sub.Completed, sub.Revision})
		}
	}
	rows = append(rows, []any{"All sections", "", sum.Total, sum.Completed, sum.Revision})

	if err := writeRows(f, SummaryTab, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummaryTab, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	last := fmt.Sprintf("A%d", len(rows))
	if err := f.SetCellStyle(SummaryTab, last, fmt.Sprintf("E%d", len(rows)), headerStyle); err != nil {
		return fmt.Errorf("style summary total: %w", err)
	}
	return f.SetColWidth(SummaryTab, "A", "B", 28)
}

func writeProblems(f *excelize.File, sh sheet.Sheet, records []progress.Progress, headerStyle int) error {
	byProblem := make(map[string]progress.Progress, len(records))
	for _, rec := range records {
		byProblem[rec.ProblemID] = rec
	}

	rows := [][]any{problemsHeader}
	for _, sec := range sh.Sections {
		for _, sub := range sec.Subsections {
			loc := sheet.Location{SheetID: sh.ID, SectionID: sec.ID, SubsectionID: sub.ID}
			for _, ref := range sub.Problems {
				title, difficulty, platform, link := ref.ID, "", "", ""
				if p := ref.Problem; p != nil {
					title = p.Title
					difficulty = string(p.Difficulty)
					platform = p.Platform
					link = p.Links.Practice
				}
				rec := byProblem[ref.ID]
				rows = append(rows, []any{
					sec.Name, sub.Name, title, difficulty, platform,
					yesNo(rec.CompletedAt(loc)), yesNo(rec.RevisionAt(loc)), link,
				})
			}
		}
	}

	if err := writeRows(f, ProblemsTab, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(ProblemsTab, "A1", "H1", headerStyle); err != nil {
		return fmt.Errorf("style problems header: %w", err)
	}
	if err := f.SetColWidth(ProblemsTab, "A", "C", 28); err != nil {
		return err
	}
	return f.SetColWidth(ProblemsTab, "H", "H", 48)
}

func writeRows(f *excelize.File, tab string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(tab, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", tab, i+1, err)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
