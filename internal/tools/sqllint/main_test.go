package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLinterReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package q\n\nconst QOne = `--sql 11111111-2222-3333-4444-555555555555\nselect 1;`\n\nconst QSchema = `create table if not exists t (id int);`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QTwo = `--sql 11111111-2222-3333-4444-555555555555\nselect 2;`\n\nconst Label = \"not sql\"\n")

	l := newLinter()
	if err := l.lintPath(dir); err != nil {
		t.Fatalf("lintPath: %v", err)
	}
	if len(l.violations) != 2 {
		t.Fatalf("expected 2 violations, got %#v", l.violations)
	}
	var missing, duplicate bool
	for _, v := range l.violations {
		switch {
		case v.name == "QSchema" && strings.Contains(v.message, "missing"):
			missing = true
		case v.name == "QTwo" && strings.Contains(v.message, "already used by QOne"):
			duplicate = true
		}
	}
	if !missing || !duplicate {
		t.Fatalf("unexpected violations: %#v", l.violations)
	}
}

func TestLinterAcceptsCampaignQueries(t *testing.T) {
	l := newLinter()
	if err := l.lintPath(filepath.Join("..", "..", "sqlinline", "campaigns.go")); err != nil {
		t.Fatalf("lintPath: %v", err)
	}
	if len(l.violations) != 0 {
		t.Fatalf("unexpected violations: %#v", l.violations)
	}
}
