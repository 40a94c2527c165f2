package translationmanager

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pitabwire/translation-manager/workerpool"
)

var (
	groupKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[^\s.][^\s]*)+$`)
	skippedDirs     = []string{".git", "node_modules", "vendor"}
)

// foundKey is a translation key found in source code.
type foundKey struct {
	Group string
	Key   string
}

// scanner finds translation function calls in source files.
type scanner struct {
	patterns   []*regexp.Regexp
	extensions []string
}

func newScanner(functions, extensions []string) (*scanner, error) {
	if len(functions) == 0 {
		return nil, fmt.Errorf("%w: no translation functions configured", ErrInvalidKey)
	}

	quoted := make([]string, 0, len(functions))
	for _, fn := range functions {
		quoted = append(quoted, regexp.QuoteMeta(fn))
	}
	names := strings.Join(quoted, "|")

	s := &scanner{extensions: extensions}
	for _, quote := range []string{`"`, `'`} {
		pattern := `(?:^|[^\w>$])(?:` + names + `)\(\s*` + quote +
			`((?:[^` + quote + `\\]|\\.)*)` + quote + `\s*[\),]`
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// files lists the files under root carrying one of the scanned extensions.
func (s *scanner) files(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && slices.Contains(skippedDirs, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if len(s.extensions) == 0 || slices.Contains(s.extensions, strings.ToLower(filepath.Ext(p))) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

// scanContent extracts the keys referenced in content.
func (s *scanner) scanContent(content string) []foundKey {
	var keys []foundKey
	for _, re := range s.patterns {
		for _, match := range re.FindAllStringSubmatch(content, -1) {
			if key, ok := classify(unescape(match[1])); ok {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// classify turns "group.key" into a group key and anything else into a JSON key.
// Package keys ("package::group.key") are left to their package.
func classify(text string) (foundKey, bool) {
	if strings.TrimSpace(text) == "" || strings.Contains(text, "::") {
		return foundKey{}, false
	}

	if groupKeyPattern.MatchString(text) && !strings.HasSuffix(text, ".") {
		group, key, _ := strings.Cut(text, ".")
		return foundKey{Group: group, Key: key}, true
	}
	return foundKey{Group: JSONGroup, Key: text}, true
}

func unescape(s string) string {
	return strings.NewReplacer(`\'`, `'`, `\"`, `"`).Replace(s)
}

// scan reads every file on the worker pool and returns the distinct keys in a stable order.
func (s *scanner) scan(ctx context.Context, workers *workerpool.Manager, root string) ([]foundKey, error) {
	files, err := s.files(root)
	if err != nil {
		return nil, err
	}

	perFile, err := workerpool.Map(ctx, workers, files, func(_ context.Context, file string) ([]foundKey, error) {
		content, readErr := os.ReadFile(file)
		if readErr != nil {
			return nil, readErr
		}
		return s.scanContent(string(content)), nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[foundKey]struct{})
	var keys []foundKey
	for _, found := range perFile {
		for _, key := range found {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys, nil
}
