package command

import (
	"regexp"
	"slices"
	"strings"
)

// flagAliases maps short and legacy flag spellings to their long form.
var flagAliases = map[string]string{
	"-n":    "--name",
	"-m":    "--memory",
	"-d":    "--disk",
	"-c":    "--cpus",
	"-p":    "--purge",
	"--mem": "--memory",
}

// flagTypos maps close-but-wrong spellings to the real flag.
var flagTypos = map[string]string{
	"--cpu":       "--cpus",
	"--cpu-count": "--cpus",
	"--memmory":   "--memory",
	"--memory-gb": "--memory",
	"--disk-size": "--disk",
	"--names":     "--name",
}

var verbAliases = map[string]string{
	"create": string(OpLaunch),
}

// boolFlags never consume the following word as a value.
var boolFlags = map[string]bool{
	"--purge":   true,
	"--all":     true,
	"--force":   true,
	"--verbose": true,
	"--bridged": true,
	"--help":    true,
	"-v":        true,
	"-h":        true,
}

var fencePattern = regexp.MustCompile("(?s)^```(?:[\\w+-]*[ \\t]*\\r?\\n)?(.*?)```$")

// Normalizer rewrites candidates into canonical command text.
type Normalizer struct {
	// DefaultRelease is inserted into launch commands without an image.
	// Empty means DefaultRelease.
	DefaultRelease string
}

// Normalize rewrites candidate using the package defaults.
func Normalize(candidate string) string {
	return Normalizer{}.Normalize(candidate)
}

// Normalize rewrites candidate into canonical form. It never fails: text that
// is not a usable command still comes out as "multipass ..." and is left for
// Classify to reject. Normalize is idempotent. Invalid UTF-8 is replaced
// with U+FFFD first, as the tokenizer would on a second pass.
func (n Normalizer) Normalize(candidate string) string {
	words := splitWords(unwrap(strings.ToValidUTF8(candidate, "\uFFFD")))
	for len(words) > 0 && (isBinaryWord(words[0]) || words[0] == "$" || words[0] == "sudo") {
		words = words[1:]
	}
	words = rewriteFlags(words)
	if len(words) == 0 {
		return Binary
	}

	verb := words[0]
	if !isFlag(verb) {
		verb = strings.ToLower(verb)
		if alias, ok := verbAliases[verb]; ok {
			verb = alias
		}
	}
	positionals, flags := partition(words[1:])

	if Operation(verb) == OpLaunch {
		positionals, flags = n.backfillRelease(positionals, flags)
	}

	out := make([]string, 0, len(words)+2)
	out = append(out, Binary, verb)
	out = append(out, positionals...)
	for _, f := range flags {
		out = append(out, f...)
	}
	return joinWords(out)
}

// unwrap strips an enclosing code fence, matching quotes or backticks.
func unwrap(s string) string {
	for {
		t := strings.TrimSpace(s)
		if m := fencePattern.FindStringSubmatch(t); m != nil {
			t = strings.TrimSpace(m[1])
		}
		if len(t) >= 2 {
			q := t[0]
			if (q == '\'' || q == '"') && t[len(t)-1] == q && !strings.ContainsRune(t[1:len(t)-1], rune(q)) {
				t = t[1 : len(t)-1]
			} else if q == '`' && t[len(t)-1] == '`' {
				t = strings.Trim(t, "`")
			}
		}
		if t == s {
			return t
		}
		s = t
	}
}

// rewriteFlags splits --flag=value and applies the alias and typo tables.
// A split-off value is examined again, so "--name=-x=y" settles in one pass.
func rewriteFlags(words []string) []string {
	words = slices.Clone(words)
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); i++ {
		w := words[i]
		if !isFlag(w) {
			out = append(out, w)
			continue
		}
		if j := strings.IndexByte(w, '='); j > 0 {
			words = slices.Insert(words, i+1, w[j+1:])
			w = w[:j]
		}
		if strings.HasPrefix(w, "--") {
			w = strings.ToLower(w)
		}
		if alias, ok := flagAliases[w]; ok {
			w = alias
		}
		if fixed, ok := flagTypos[w]; ok {
			w = fixed
		}
		out = append(out, w)
	}
	return out
}

// partition separates positional words from flags, keeping each flag
// together with its value. A flag takes the next word as its value unless it
// is boolean or the next word is itself a flag.
func partition(words []string) (positionals []string, flags [][]string) {
	for i := 0; i < len(words); i++ {
		w := words[i]
		if !isFlag(w) {
			positionals = append(positionals, w)
			continue
		}
		if !boolFlags[w] && i+1 < len(words) && !isFlag(words[i+1]) {
			flags = append(flags, []string{w, words[i+1]})
			i++
			continue
		}
		flags = append(flags, []string{w})
	}
	return positionals, flags
}

// backfillRelease moves a recognized release to the front of the
// positionals in its canonical spelling, or inserts the default one.
func (n Normalizer) backfillRelease(positionals []string, flags [][]string) ([]string, [][]string) {
	for i, f := range flags {
		if f[0] != "--image" && f[0] != "--release" {
			continue
		}
		if len(f) < 2 {
			continue
		}
		if release, ok := CanonicalRelease(f[1]); ok {
			rest := append(append([][]string{}, flags[:i]...), flags[i+1:]...)
			return append([]string{release}, positionals...), rest
		}
		// An image multipass knows by another name stays an explicit flag.
		flags[i] = []string{"--image", f[1]}
		return positionals, flags
	}

	for i, p := range positionals {
		if release, ok := CanonicalRelease(p); ok {
			rest := make([]string, 0, len(positionals))
			rest = append(rest, release)
			rest = append(rest, positionals[:i]...)
			rest = append(rest, positionals[i+1:]...)
			return rest, flags
		}
	}

	return append([]string{n.defaultRelease()}, positionals...), flags
}

func (n Normalizer) defaultRelease() string {
	if release, ok := CanonicalRelease(n.DefaultRelease); ok {
		return release
	}
	return DefaultRelease
}
