package report_test

import (
	"bytes"
	"slices"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-sheets/internal/problem"
	"github.com/p-n-ai/pai-sheets/internal/progress"
	"github.com/p-n-ai/pai-sheets/internal/report"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

func TestWriteSheetProgress(t *testing.T) {
	twoSum := &problem.Problem{ID: "p1", Title: "Two Sum", Difficulty: problem.DifficultyEasy, Platform: "leetcode",
		Links: problem.Links{Practice: "https://leetcode.com/problems/two-sum/"}}
	sh := sheet.Sheet{
		ID:   "s1",
		Name: "Blind 75",
		Sections: []sheet.Section{{
			ID: "arrays", Name: "Arrays",
			Subsections: []sheet.Subsection{{
				ID: "easy", Name: "Easy",
				Problems: []sheet.ProblemRef{{ID: "p1", Problem: twoSum}, sheet.Ref("p2")},
			}},
		}},
	}
	sum := tracker.SheetSummary{
		SheetID: "s1", Name: "Blind 75",
		Counts: tracker.Counts{Total: 2, Completed: 1},
		Sections: []tracker.SectionSummary{{
			ID: "arrays", Name: "Arrays", Counts: tracker.Counts{Total: 2, Completed: 1},
			Subsections: []tracker.SubsectionSummary{{ID: "easy", Name: "Easy", Counts: tracker.Counts{Total: 2, Completed: 1}}},
		}},
	}
	rec := progress.Progress{UserID: "u1", ProblemID: "p1"}
	rec.SetCompleted(true, []sheet.Location{{SheetID: "s1", SectionID: "arrays", SubsectionID: "easy"}})

	var buf bytes.Buffer
	if err := report.WriteSheetProgress(&buf, sh, sum, []progress.Progress{rec}); err != nil {
		t.Fatalf("WriteSheetProgress() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	if tabs := f.GetSheetList(); !slices.Equal(tabs, []string{report.SummaryTab, report.ProblemsTab}) {
		t.Errorf("tabs = %v", tabs)
	}

	summary, err := f.GetRows(report.SummaryTab)
	if err != nil {
		t.Fatalf("GetRows(summary) error = %v", err)
	}
	if len(summary) != 3 {
		t.Fatalf("summary rows = %d, want header + subsection + total", len(summary))
	}
	if got := summary[1]; got[1] != "Easy" || got[2] != "2" || got[3] != "1" {
		t.Errorf("subsection row = %v", got)
	}

	problems, err := f.GetRows(report.ProblemsTab)
	if err != nil {
		t.Fatalf("GetRows(problems) error = %v", err)
	}
	if len(problems) != 3 {
		t.Fatalf("problem rows = %d, want 3", len(problems))
	}
	if got := problems[1]; got[2] != "Two Sum" || got[5] != "Yes" || got[7] != twoSum.Links.Practice {
		t.Errorf("first problem row = %v", got)
	}
	if got := problems[2]; got[2] != "p2" || got[5] != "No" {
		t.Errorf("unexpanded problem row = %v", got)
	}
}
