package library

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"paper.pdf", "paper.pdf"},
		{"my paper (v2).pdf", "mypaperv2.pdf"},
		{"../../etc/passwd", "....etcpasswd"},
		{"résumé.pdf", "rsum.pdf"},
		{"", ""},
		{"///", ""},
		{strings.Repeat("a", 200), strings.Repeat("a", MaxFilenameLength)},
		{strings.Repeat("é", 50) + "x.pdf", "x.pdf"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTags(t *testing.T) {
	many := strings.Repeat("t,", 20)
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"blank parts", " , ,", []string{}},
		{"trimmed", " ml , vision,", []string{"ml", "vision"}},
		{"order kept", "b,a,b", []string{"b", "a", "b"}},
		{"capped", many, strings.Split(strings.TrimSuffix(strings.Repeat("t,", MaxTags), ","), ",")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTags(tt.in)
			if got == nil || !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTags(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	valid := []string{"3f2b9c1e-8a7d-4e2f-9b1a-0c5d6e7f8a9b", "abc", "a.b"}
	for _, id := range valid {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) = %v", id, err)
		}
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, "a\x00b", "..a", "a..b", strings.Repeat("x", 201)}
	for _, id := range invalid {
		if err := ValidateID(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("ValidateID(%q) = %v, want ErrInvalidID", id, err)
		}
	}
}
