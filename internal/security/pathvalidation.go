// Package security guards the filesystem paths built from client input:
// uploaded filenames and job identifiers.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its base directory.
var ErrPathEscape = errors.New("path escapes base directory")

// maxFilenameLen bounds sanitized names so "<id>_<name>" stays well under
// common filesystem limits.
const maxFilenameLen = 128

// ValidatePathWithinDirectory returns ErrPathEscape (wrapped) when filePath,
// after cleaning and symlink resolution, is not inside baseDir. Paths that do
// not exist yet are checked through their nearest existing parent, so a
// symlinked parent pointing elsewhere is still caught.
func ValidatePathWithinDirectory(filePath, baseDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", filePath, err)
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolve base %q: %w", baseDir, err)
	}
	base, err := filepath.EvalSymlinks(absBase)
	if err != nil {
		return fmt.Errorf("resolve base %q: %w", baseDir, err)
	}

	target := canonical(absPath)
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPathEscape, filePath)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, filePath, baseDir)
	}
	return nil
}

// canonical resolves symlinks in p, or in its deepest existing ancestor when p
// itself does not exist.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	dir := p
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return p
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rest, _ := filepath.Rel(parent, p)
			return filepath.Join(resolved, rest)
		}
		dir = parent
	}
}

// SanitizeFilename reduces a client-supplied filename to its final path
// element and replaces everything outside [A-Za-z0-9._-] with a single
// underscore. Leading dots and underscores are trimmed so the result is never
// hidden or empty; "unknown" is returned when nothing usable remains.
func SanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}

	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !ok {
			pendingUnderscore = true
			continue
		}
		if pendingUnderscore && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingUnderscore = false
		b.WriteRune(r)
	}

	out := strings.TrimRight(strings.TrimLeft(b.String(), "._"), "_")
	if out == "" || strings.Trim(out, ".") == "" {
		return "unknown"
	}
	return out
}

// JoinWithin joins a sanitized name onto dir and verifies the result stays in
// dir. dir must exist.
func JoinWithin(dir, name string) (string, error) {
	p := filepath.Join(dir, SanitizeFilename(name))
	if err := ValidatePathWithinDirectory(p, dir); err != nil {
		return "", err
	}
	return p, nil
}
