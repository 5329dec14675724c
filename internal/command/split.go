package command

import "strings"

// Split breaks a candidate into single commands: one per line, with lines
// chained by "&&" split further. Backslash line continuations are joined,
// blank lines and shell comments are skipped.
func Split(candidate string) []string {
	joined := strings.NewReplacer("\\\r\n", " ", "\\\n", " ").Replace(candidate)

	var out []string
	for _, line := range strings.Split(joined, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, part := range strings.Split(line, "&&") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
