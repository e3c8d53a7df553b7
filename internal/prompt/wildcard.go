package prompt

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// wildcardPattern matches `{identifier}` placeholders.
var wildcardPattern = regexp.MustCompile(`\{(\w+)\}`)

// Library provides candidate lines for a named wildcard list.
type Library interface {
	// Lines returns the non-empty lines for name, or false when no list
	// with that name exists.
	Lines(name string) ([]string, bool)
}

// Expander replaces `{identifier}` placeholders in a prompt with a random
// line from the same-named wildcard list. Unknown identifiers stay literal.
type Expander struct {
	Library Library
	Logger  zerolog.Logger
	// Pick selects an index in [0, n). Left nil, selection is uniformly
	// random; tests inject a deterministic pick.
	Pick func(n int) int
}

// Expand resolves every placeholder in prompt. Repeated identical
// placeholders are re-rolled independently, so `{color} and {color}` may
// yield two different values.
func (e Expander) Expand(prompt string) string {
	return wildcardPattern.ReplaceAllStringFunc(prompt, func(match string) string {
		name := match[1 : len(match)-1]
		lines, ok := e.Library.Lines(name)
		if !ok || len(lines) == 0 {
			e.Logger.Warn().Str("wildcard", name).Msg("wildcard list not found")
			return match
		}
		return lines[e.pick(len(lines))]
	})
}

func (e Expander) pick(n int) int {
	if e.Pick != nil {
		return e.Pick(n)
	}
	return rand.Intn(n)
}

// Dir is a Library reading `<path>/<name>.txt` on every lookup, so edits to
// the wildcard files take effect without a restart.
type Dir struct {
	Path string
}

// NewDir validates that path exists and returns a directory-backed library.
func NewDir(path string) (Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Dir{}, fmt.Errorf("wildcard dir: %w", err)
	}
	if !info.IsDir() {
		return Dir{}, fmt.Errorf("wildcard dir: %s is not a directory", path)
	}
	return Dir{Path: path}, nil
}

// Lines reads the list for name. Identifiers come from wildcardPattern so
// they can never traverse outside the directory.
func (d Dir) Lines(name string) ([]string, bool) {
	data, err := os.ReadFile(filepath.Join(d.Path, name+".txt"))
	if err != nil {
		return nil, false
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, false
	}
	return lines, true
}
