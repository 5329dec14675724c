package command

import (
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

// splitWords tokenizes s with shell quoting rules. Input the shell parser
// refuses (unbalanced quotes, parentheses) or would truncate at a shell
// operator falls back to whitespace splitting, so no text is ever lost.
func splitWords(s string) []string {
	p := shellwords.NewParser()
	words, err := p.Parse(s)
	if err != nil || p.Position >= 0 {
		return strings.Fields(s)
	}
	return words
}

// strictWords tokenizes s and fails where splitWords would fall back.
func strictWords(s string) ([]string, string) {
	p := shellwords.NewParser()
	words, err := p.Parse(s)
	if err != nil {
		return nil, err.Error()
	}
	if p.Position >= 0 {
		return nil, "shell operators are not supported"
	}
	return words, ""
}

// isBinaryWord reports whether w names the control binary, either bare or
// as a path ("/snap/bin/multipass", "multipass.exe").
func isBinaryWord(w string) bool {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(w, `\`, "/")))
	return strings.TrimSuffix(base, ".exe") == Binary
}

func isFlag(w string) bool {
	return len(w) > 1 && w[0] == '-'
}

func safeWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("_-./:=,@%+", r)
}

// quoteWord quotes w so that splitWords returns it unchanged.
func quoteWord(w string) string {
	if w == "" {
		return "''"
	}
	safe := true
	for _, r := range w {
		if !safeWordRune(r) {
			safe = false
			break
		}
	}
	if safe {
		return w
	}
	if !strings.Contains(w, "'") {
		return "'" + w + "'"
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(w) + `"`
}

func joinWords(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = quoteWord(w)
	}
	return strings.Join(quoted, " ")
}
