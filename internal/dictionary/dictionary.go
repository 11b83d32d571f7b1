// internal/dictionary/dictionary.go
package dictionary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrDictionaryLoad indicates the word list could not be read.
var ErrDictionaryLoad = errors.New("dictionary load failure")

// Dictionary is an immutable set of lowercase words. It is never written after
// construction, so any number of rooms may read it concurrently without locking.
type Dictionary struct {
	words    map[string]struct{}
	degraded bool
}

// Load reads a newline separated word list from path.
func Load(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDictionaryLoad, err)
	}
	defer f.Close()

	d, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDictionaryLoad, path, err)
	}
	return d, nil
}

// Read parses a word list. Blank lines and lines starting with '#' are skipped;
// every word is trimmed and lowercased.
func Read(r io.Reader) (*Dictionary, error) {
	words := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.ToLower(strings.TrimSpace(sc.Text()))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words[w] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return &Dictionary{words: words}, nil
}

// LoadOrFallback loads path, degrading to an empty dictionary if that fails.
// A degraded dictionary accepts no words; callers should check Degraded and
// tell players instead of silently rejecting everything.
func LoadOrFallback(path string, logger *logrus.Logger) *Dictionary {
	d, err := Load(path)
	if err != nil {
		logger.WithError(err).WithField("path", path).Error("Falling back to empty dictionary")
		return &Dictionary{words: map[string]struct{}{}, degraded: true}
	}
	logger.WithFields(logrus.Fields{"path": path, "words": d.Len()}).Info("Dictionary loaded")
	return d
}

// FromWords builds a dictionary from an in-memory list.
func FromWords(words []string) *Dictionary {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			m[w] = struct{}{}
		}
	}
	return &Dictionary{words: m}
}

// Contains reports whether word is in the dictionary, ignoring case.
func (d *Dictionary) Contains(word string) bool {
	if d == nil {
		return false
	}
	_, ok := d.words[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.words)
}

// Degraded is true when the dictionary is the empty fallback.
func (d *Dictionary) Degraded() bool {
	return d == nil || d.degraded
}
