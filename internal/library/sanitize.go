package library

import (
	"path/filepath"
	"strings"
)

const (
	// MaxFilenameLength bounds a stored original filename.
	MaxFilenameLength = 120
	// MaxTags bounds the number of tags kept per document.
	MaxTags = 12
	// FallbackFilename is used when nothing of the uploaded name survives.
	FallbackFilename = "paper.pdf"
)

// SanitizeFilename keeps only [A-Za-z0-9._-] and truncates to
// MaxFilenameLength characters.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if isSafeFilenameRune(r) {
			b.WriteRune(r)
			if b.Len() == MaxFilenameLength {
				break
			}
		}
	}
	return b.String()
}

func isSafeFilenameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}

// ParseTags splits a comma-separated list, trims each tag, drops empty ones
// and keeps at most MaxTags.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
			if len(tags) == MaxTags {
				break
			}
		}
	}
	return tags
}

// ValidateID checks that id is a single path component.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || len(id) > 200 {
		return ErrInvalidID
	}
	if strings.ContainsAny(id, "/\\\x00") || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	if filepath.Base(id) != id {
		return ErrInvalidID
	}
	return nil
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
