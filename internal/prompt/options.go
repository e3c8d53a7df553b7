package prompt

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"sketchbot/internal/domain"
)

const (
	defaultScale = 1.2
	maxSeed      = 999999999
)

// flagPattern matches the `--name` introducer of an option. A flag's value
// is everything up to the next `--` token, so flags never consume each other.
var flagPattern = regexp.MustCompile(`--(\w+)`)

// Parser turns a raw argument string of the form
// `free text --flag value --flag2` into GenerateOptions plus a cleaned
// prompt. Parsing is deliberately lenient: a numeric flag that fails to
// parse falls back to its default instead of erroring.
type Parser struct {
	DefaultNegative string
	MaxGenerations  int
	// Seed supplies the default seed when the user does not pass --seed.
	// Left nil, a fresh random seed is drawn per request.
	Seed func() int64
}

// Parse extracts options from raw and strips all flag tokens from the prompt.
func (p Parser) Parse(raw string) domain.GenerateOptions {
	prompt, flags := splitFlags(raw)

	opts := domain.GenerateOptions{
		Seed:           p.defaultSeed(),
		Scale:          defaultScale,
		NegativePrompt: p.DefaultNegative,
		NumGenerations: 1,
	}

	if v, ok := flags["seed"]; ok {
		if seed, ok := parsePositiveInt(v); ok {
			opts.Seed = seed
		}
	}
	if v, ok := flags["scale"]; ok {
		if scale, ok := parsePositiveFloat(v); ok {
			opts.Scale = scale
		}
	}
	if v, ok := flags["n"]; ok {
		if n, ok := parsePositiveInt(v); ok {
			opts.NumGenerations = clampGenerations(int(n), p.maxGenerations())
		}
	}
	if v, ok := flags["no"]; ok {
		// An explicit --no overrides the configured default; an empty value
		// clears the negative prompt entirely.
		opts.NegativePrompt = v
		prompt = stripNegativeTerms(prompt, v)
	}

	opts.Prompt = prompt
	return opts
}

// splitFlags returns the free text preceding the first flag and a map of
// flag name to raw value. A flag with no following text maps to "".
func splitFlags(raw string) (string, map[string]string) {
	matches := flagPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(raw), nil
	}

	flags := make(map[string]string, len(matches))
	for i, m := range matches {
		name := raw[m[2]:m[3]]
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		flags[name] = strings.TrimSpace(raw[m[1]:end])
	}
	return strings.TrimSpace(raw[:matches[0][0]]), flags
}

// stripNegativeTerms removes inline exclusion terms from the prompt so a user
// writing `red hat --no red` does not keep the excluded word in the prompt.
func stripNegativeTerms(prompt, negative string) string {
	for _, term := range strings.Split(negative, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		prompt = strings.TrimSpace(strings.ReplaceAll(prompt, term, ""))
	}
	return prompt
}

func clampGenerations(n, max int) int {
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

func (p Parser) maxGenerations() int {
	if p.MaxGenerations < 1 {
		return 1
	}
	return p.MaxGenerations
}

func (p Parser) defaultSeed() int64 {
	if p.Seed != nil {
		return p.Seed()
	}
	return rand.Int63n(maxSeed) + 1
}

func parsePositiveInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parsePositiveFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
