// Package importer reads sheet documents from JSON uploads and YAML seed
// files and applies them to the tracker.
package importer

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/problem"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
)

//go:embed schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Bundle is one sheet plus the problems it carries.
type Bundle struct {
	Sheet    sheet.Sheet
	Problems []problem.Problem
	Source   string // file path for seeds, empty for uploads
}

// Validate checks doc against the import schema. Schema violations are
// returned as a single apperr.ErrInvalid listing every failing field.
func Validate(doc []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile import schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return apperr.Invalid("import document is not valid JSON: %v", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return apperr.Invalid("import document failed validation: %s", strings.Join(msgs, "; "))
}

type document struct {
	sheet.Sheet
	Problems []problem.Problem `json:"problems"`
}

// ParseJSON validates and decodes an import document. Problems embedded in
// subsections are collected next to the top-level problems list; the
// top-level entry wins when both carry the same ID.
func ParseJSON(doc []byte) (Bundle, error) {
	if err := Validate(doc); err != nil {
		return Bundle{}, err
	}
	var d document
	if err := json.Unmarshal(doc, &d); err != nil {
		return Bundle{}, apperr.Invalid("decode import document: %v", err)
	}

	seen := make(map[string]bool, len(d.Problems))
	problems := make([]problem.Problem, 0, len(d.Problems))
	for _, p := range d.Problems {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		problems = append(problems, p)
	}
	for _, sec := range d.Sheet.Sections {
		for _, sub := range sec.Subsections {
			for _, ref := range sub.Problems {
				if ref.Problem == nil || seen[ref.ID] {
					continue
				}
				seen[ref.ID] = true
				problems = append(problems, ref.Problem.Clone())
			}
		}
	}

	return Bundle{Sheet: d.Sheet, Problems: problems}, nil
}

// Encode renders b as an import document accepted by ParseJSON.
func Encode(b Bundle) ([]byte, error) {
	d := document{Sheet: b.Sheet, Problems: b.Problems}
	if d.Problems == nil {
		d.Problems = []problem.Problem{}
	}
	if d.Sections == nil {
		d.Sections = []sheet.Section{}
	}
	return json.Marshal(d)
}

// Target is what Apply writes to. *tracker.Service satisfies it.
type Target interface {
	UpsertProblem(ctx context.Context, p problem.Problem) (problem.Problem, bool, error)
	ImportSheet(ctx context.Context, sh sheet.Sheet) (sheet.Sheet, bool, error)
}

// Result summarizes one applied bundle.
type Result struct {
	SheetID         string `json:"sheet_id"`
	SheetCreated    bool   `json:"sheet_created"`
	Problems        int    `json:"problems"`
	ProblemsCreated int    `json:"problems_created"`
}

// Apply upserts the bundle's problems, then creates or replaces its sheet.
// Progress contexts are resynced by the sheet import.
func Apply(ctx context.Context, t Target, b Bundle) (Result, error) {
	var res Result
	for _, p := range b.Problems {
		_, created, err := t.UpsertProblem(ctx, p)
		if err != nil {
			return res, fmt.Errorf("upsert problem %s: %w", p.ID, err)
		}
		res.Problems++
		if created {
			res.ProblemsCreated++
		}
	}

	sh, created, err := t.ImportSheet(ctx, b.Sheet)
	if err != nil {
		return res, fmt.Errorf("import sheet %s: %w", b.Sheet.ID, err)
	}
	res.SheetID = sh.ID
	res.SheetCreated = created

	slog.Info("sheet imported",
		"sheet_id", sh.ID,
		"created", created,
		"problems", res.Problems,
		"problems_created", res.ProblemsCreated,
		"source", b.Source,
	)
	return res, nil
}
