package models

import "testing"

func TestParseArtifactName(t *testing.T) {
	id := "b942cd8866afa64b92b8246adb100eef"

	tests := []struct {
		name   string
		input  string
		want   Artifact
		wantOK bool
	}{
		{
			name:   "png artifact",
			input:  id + "_7_.png",
			want:   Artifact{Identity: id, Baseline: 7, Suffix: ".png"},
			wantOK: true,
		},
		{
			name:   "zero baseline",
			input:  id + "_0_.png",
			want:   Artifact{Identity: id, Baseline: 0, Suffix: ".png"},
			wantOK: true,
		},
		{
			name:   "empty suffix",
			input:  id + "_12_",
			want:   Artifact{Identity: id, Baseline: 12, Suffix: ""},
			wantOK: true,
		},
		{
			name:   "sha256 identity",
			input:  id + id + "_3_.png",
			want:   Artifact{Identity: id + id, Baseline: 3, Suffix: ".png"},
			wantOK: true,
		},
		{name: "short identity", input: "abc_7_.png", wantOK: false},
		{name: "negative baseline", input: id + "_-7_.png", wantOK: false},
		{name: "missing baseline", input: id + "_.png", wantOK: false},
		{name: "unrelated file", input: "notes.txt", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseArtifactName(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
			if ok && got.Name() != tt.input {
				t.Errorf("Name() = %s, want %s", got.Name(), tt.input)
			}
		})
	}
}

func TestMatchBaseline(t *testing.T) {
	src := NewMathSource("x", 120, false)
	id := src.Identity()

	if b, ok := MatchBaseline(id, id+"_4_.png"); !ok || b != 4 {
		t.Errorf("expected baseline 4, got %d (ok=%v)", b, ok)
	}

	other := NewMathSource("x", 120, true).Identity()
	if _, ok := MatchBaseline(id, other+"_4_.png"); ok {
		t.Error("matched an artifact of a different identity")
	}
}
