package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName makes a video title safe to use as the stem of the blurred
// output file. Control characters are dropped, anything outside the allowed
// set becomes an underscore, and the result is trimmed and truncated to
// maxLen runes.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case allowedNameRune(r):
			return r
		default:
			return '_'
		}
	}, s)

	cleaned = strings.TrimSpace(cleaned)
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func allowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	}
	return false
}

// ValidateOutputDir vets the directory the blurred file will be written to
// before an export job is accepted. The path must be clean, traversal-free,
// and an existing directory; exports never create their destination.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output_dir is required")
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("output_dir must not traverse upward")
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("output_dir must be a clean path")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output_dir does not exist")
		}
		return fmt.Errorf("output_dir not usable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output_dir is not a directory")
	}
	return nil
}
