package sheet_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

func TestProblemRef_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantID    string
		wantTitle string
		wantErr   bool
	}{
		{name: "bare id", input: `"p1"`, wantID: "p1"},
		{name: "bare id trimmed", input: `" p1 "`, wantID: "p1"},
		{name: "embedded with id", input: `{"id":"p2","title":"Two Sum"}`, wantID: "p2", wantTitle: "Two Sum"},
		{name: "embedded with _id", input: `{"_id":"p3","title":"3Sum","difficulty":"medium"}`, wantID: "p3", wantTitle: "3Sum"},
		{name: "id preferred over _id", input: `{"id":"a","_id":"b"}`, wantID: "a"},
		{name: "empty string", input: `""`, wantErr: true},
		{name: "object without id", input: `{"title":"orphan"}`, wantErr: true},
		{name: "number", input: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref sheet.ProblemRef
			err := json.Unmarshal([]byte(tt.input), &ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if ref.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", ref.ID, tt.wantID)
			}
			if tt.wantTitle != "" {
				if ref.Problem == nil {
					t.Fatal("Problem should hold the embedded copy")
				}
				if ref.Problem.Title != tt.wantTitle {
					t.Errorf("Problem.Title = %q, want %q", ref.Problem.Title, tt.wantTitle)
				}
				if ref.Problem.ID != tt.wantID {
					t.Errorf("Problem.ID = %q, want %q", ref.Problem.ID, tt.wantID)
				}
			}
		})
	}
}

func TestSheet_MixedRefsRoundTripAsIDs(t *testing.T) {
	raw := `{
		"id": "s1",
		"name": "Blind 75",
		"sections": [{
			"id": "arrays",
			"name": "Arrays",
			"subsections": [{
				"id": "easy",
				"name": "Easy",
				"problems": ["p1", {"_id": "p2", "title": "Best Time"}]
			}]
		}]
	}`

	var s sheet.Sheet
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := s.ProblemIDs(); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Fatalf("ProblemIDs() = %v", got)
	}

	s.Compact()
	out, err := json.Marshal(s.Sections[0].Subsections[0].Problems)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `["p1","p2"]` {
		t.Errorf("compacted refs = %s, want bare ids", out)
	}
}

func TestSheet_Normalize(t *testing.T) {
	s := sheet.Sheet{
		Name: "  Striver  ",
		Sections: []sheet.Section{{
			ID:   " s1 ",
			Name: "Arrays",
			Subsections: []sheet.Subsection{{
				ID:       "x",
				Name:     "Basics",
				Problems: []sheet.ProblemRef{sheet.Ref("a"), sheet.Ref("b"), sheet.Ref("a"), sheet.Ref("")},
			}},
		}, {
			ID:   "s2",
			Name: "Empty",
		}},
	}
	s.Normalize()

	if s.Name != "Striver" {
		t.Errorf("Name = %q", s.Name)
	}
	if s.Sections[0].ID != "s1" {
		t.Errorf("section ID = %q", s.Sections[0].ID)
	}
	if got := s.Sections[0].Subsections[0].Problems; len(got) != 2 {
		t.Errorf("refs after Normalize = %v, want 2 unique", got)
	}
	if s.Sections[1].Subsections == nil {
		t.Error("empty subsections should be non-nil after Normalize")
	}
}

func TestSheet_Validate(t *testing.T) {
	sub := func(id, name string) sheet.Subsection { return sheet.Subsection{ID: id, Name: name} }

	tests := []struct {
		name    string
		sheet   sheet.Sheet
		wantErr bool
	}{
		{name: "minimal", sheet: sheet.Sheet{Name: "A"}},
		{name: "missing name", sheet: sheet.Sheet{}, wantErr: true},
		{
			name: "duplicate section",
			sheet: sheet.Sheet{Name: "A", Sections: []sheet.Section{
				{ID: "s", Name: "One"}, {ID: "s", Name: "Two"},
			}},
			wantErr: true,
		},
		{
			name:    "section without name",
			sheet:   sheet.Sheet{Name: "A", Sections: []sheet.Section{{ID: "s"}}},
			wantErr: true,
		},
		{
			name: "duplicate subsection",
			sheet: sheet.Sheet{Name: "A", Sections: []sheet.Section{
				{ID: "s", Name: "One", Subsections: []sheet.Subsection{sub("x", "X"), sub("x", "Y")}},
			}},
			wantErr: true,
		},
		{
			name: "same subsection id in different sections",
			sheet: sheet.Sheet{Name: "A", Sections: []sheet.Section{
				{ID: "s1", Name: "One", Subsections: []sheet.Subsection{sub("x", "X")}},
				{ID: "s2", Name: "Two", Subsections: []sheet.Subsection{sub("x", "X")}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sheet.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrInvalid) {
				t.Errorf("Validate() error = %v, want invalid kind", err)
			}
		})
	}
}

func TestSheet_Lookup(t *testing.T) {
	s := fixture()

	if _, err := s.Subsection("arrays", "easy"); err != nil {
		t.Fatalf("Subsection() error = %v", err)
	}
	if _, err := s.Section("graphs"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Section(missing) error = %v, want not found", err)
	}
	if _, err := s.Subsection("arrays", "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Subsection(missing) error = %v, want not found", err)
	}
}

func TestSubsection_AddRemove(t *testing.T) {
	var sub sheet.Subsection
	if !sub.Add("p1") {
		t.Error("first Add should report a change")
	}
	if sub.Add("p1") {
		t.Error("second Add of the same problem should be a no-op")
	}
	if !sub.Has("p1") {
		t.Error("Has(p1) = false after Add")
	}
	if !sub.Remove("p1") {
		t.Error("Remove should report a change")
	}
	if sub.Remove("p1") {
		t.Error("Remove of an absent problem should be a no-op")
	}
}

func TestSheet_RemoveProblem(t *testing.T) {
	s := fixture()
	if n := s.RemoveProblem("p1"); n != 2 {
		t.Errorf("RemoveProblem() = %d, want 2", n)
	}
	if ids := s.ProblemIDs(); !reflect.DeepEqual(ids, []string{"p2"}) {
		t.Errorf("ProblemIDs() after removal = %v", ids)
	}
}

func TestLocate(t *testing.T) {
	other := sheet.Sheet{ID: "s2", Sections: []sheet.Section{{
		ID: "dp", Subsections: []sheet.Subsection{{ID: "1d", Problems: []sheet.ProblemRef{sheet.Ref("p2")}}},
	}}}
	sheets := []sheet.Sheet{fixture(), other}

	got := sheet.Locate(sheets, "p2")
	want := []sheet.Location{
		{SheetID: "s1", SectionID: "arrays", SubsectionID: "medium"},
		{SheetID: "s2", SectionID: "dp", SubsectionID: "1d"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Locate(p2) = %+v, want %+v", got, want)
	}
	if got := sheet.Locate(sheets, "unknown"); len(got) != 0 {
		t.Errorf("Locate(unknown) = %+v, want none", got)
	}
}

func TestSheet_CloneIsIndependent(t *testing.T) {
	s := fixture()
	c := s.Clone()
	c.Sections[0].Subsections[0].Problems[0] = sheet.Ref("changed")
	if s.Sections[0].Subsections[0].Problems[0].ID != "p1" {
		t.Error("Clone() shares problem ref storage with the original")
	}
}

func fixture() sheet.Sheet {
	return sheet.Sheet{
		ID:   "s1",
		Name: "Blind 75",
		Sections: []sheet.Section{{
			ID:   "arrays",
			Name: "Arrays",
			Subsections: []sheet.Subsection{
				{ID: "easy", Name: "Easy", Problems: []sheet.ProblemRef{sheet.Ref("p1")}},
				{ID: "medium", Name: "Medium", Problems: []sheet.ProblemRef{sheet.Ref("p1"), sheet.Ref("p2")}},
			},
		}},
	}
}

func TestSheet_Contains(t *testing.T) {
	s := fixture()
	if !s.Contains("p2") {
		t.Error("Contains(p2) = false, want true")
	}
	if s.Contains("p9") {
		t.Error("Contains(p9) = true, want false")
	}
}
