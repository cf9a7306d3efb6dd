package latex

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pders01/texmath/internal/models"
)

func TestDocument(t *testing.T) {
	tests := []struct {
		name    string
		display bool
		want    string
	}{
		{"inline", false, "$x^2$"},
		{"display", true, `\[x^2\]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document(models.NewMathSource("x^2", 120, tt.display))

			if !strings.Contains(doc, tt.want) {
				t.Errorf("document does not contain %q:\n%s", tt.want, doc)
			}
			for _, pkg := range []string{"amsmath", "amsfonts", "amssymb", "{colordvi}", "[active]{preview}"} {
				if !strings.Contains(doc, pkg) {
					t.Errorf("document missing %s", pkg)
				}
			}
			if !strings.HasPrefix(doc, `\documentclass`) {
				t.Error("document should start with \\documentclass")
			}
			if !strings.Contains(doc, `\end{document}`) {
				t.Error("document not terminated")
			}
		})
	}
}

func TestArtifactSet(t *testing.T) {
	set, err := NewArtifactSet("/tmp/work/texmath-123.tex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"/tmp/work/texmath-123.tex",
		"/tmp/work/texmath-123.dvi",
		"/tmp/work/texmath-123.aux",
		"/tmp/work/texmath-123.log",
	}
	got := set.All()
	for i := range want {
		if filepath.ToSlash(got[i]) != want[i] {
			t.Errorf("artifact %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if _, err := NewArtifactSet("/tmp/work/input.txt"); err == nil {
		t.Error("expected error for non-.tex path")
	}
}

func TestCreateSourceAndRemove(t *testing.T) {
	tmpDir := t.TempDir()

	set, err := CreateSource(tmpDir, "hello")
	if err != nil {
		t.Fatalf("failed to create source: %v", err)
	}

	content, err := os.ReadFile(set.Source())
	if err != nil {
		t.Fatalf("failed to read source: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("unexpected content: %q", content)
	}

	// latex would leave these behind; log is deliberately absent
	for _, p := range []string{set.DVI(), set.Aux()} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
	}

	if err := set.Remove(); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 0 {
		t.Errorf("expected empty dir, found %d entries", len(entries))
	}

	// second removal of an already clean set is fine
	if err := set.Remove(); err != nil {
		t.Errorf("removing missing files should not fail: %v", err)
	}
}

func TestCommands(t *testing.T) {
	set := ArtifactSet{Dir: "/tmp/w", Stem: "doc"}
	tools := DefaultTools()

	lc := tools.LatexCommand(set)
	if lc.Name != "latex" || lc.Dir != "/tmp/w" {
		t.Errorf("unexpected latex command: %+v", lc)
	}
	if lc.Args[0] != "-interaction=nonstopmode" {
		t.Errorf("latex must run non-interactively: %v", lc.Args)
	}

	dc := tools.DvipngCommand(set, 300, "/out/x.png", true)
	line := dc.String()
	for _, want := range []string{"-depth", "-D 300", "-T tight", "-o /out/x.png", filepath.Join("/tmp/w", "doc.dvi")} {
		if !strings.Contains(line, want) {
			t.Errorf("dvipng command %q missing %q", line, want)
		}
	}

	dc = tools.DvipngCommand(set, 120, "/out/x.png", false)
	if strings.Contains(dc.String(), "-depth") {
		t.Error("depth flag should be omitted when not reporting baseline")
	}
}

func TestParseDepth(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		want    int
		wantErr bool
	}{
		{
			name:   "dvipng output",
			stdout: "This is dvipng 1.15 Copyright 2002-2015 Jan-Ake Larsson\n[1 depth=7] \n",
			want:   7,
		},
		{name: "zero depth", stdout: "[1 depth=0]", want: 0},
		{name: "multi digit", stdout: "depth=123", want: 123},
		{name: "missing", stdout: "[1]", wantErr: true},
		{name: "empty", stdout: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDepth([]byte(tt.stdout))
			if tt.wantErr {
				if !errors.Is(err, ErrBaselineParse) {
					t.Errorf("expected ErrBaselineParse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
