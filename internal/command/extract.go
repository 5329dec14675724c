package command

import (
	"regexp"
	"strings"
)

// Strategy names, in priority order.
const (
	StrategyFenced = "fenced"
	StrategyQuoted = "quoted"
	StrategyLine   = "line"
	StrategyScan   = "scan"
)

// Candidate is a piece of text believed to contain a command.
type Candidate struct {
	Text     string `json:"text" yaml:"text"`
	Start    int    `json:"start" yaml:"start"`
	End      int    `json:"end" yaml:"end"`
	Strategy string `json:"strategy" yaml:"strategy"`
}

// Strategy finds candidates in text using one heuristic.
type Strategy struct {
	Name string
	Find func(text string) []Candidate
}

// Strategies are tried in order by Extract; the first that finds anything wins.
var Strategies = []Strategy{
	{Name: StrategyFenced, Find: findFenced},
	{Name: StrategyQuoted, Find: findQuoted},
	{Name: StrategyLine, Find: findLines},
	{Name: StrategyScan, Find: scanText},
}

var (
	binaryPattern = regexp.MustCompile(`(?i)\bmultipass\b`)
	fencedBlock   = regexp.MustCompile("(?s)```(?:([\\w+-]*)[ \\t]*\\r?\\n)?(.*?)```")
	scanPattern   = regexp.MustCompile(
		`(?i)\bmultipass[ \t]+[a-z][a-z-]*` +
			`(?:[ \t]+[a-z0-9][\w.:-]*)?` +
			`(?:[ \t]+--?[a-z][\w-]*(?:[ \t]*=[ \t]*[^\s'"` + "`" + `]+|[ \t]+[^\s\-'"` + "`" + `][^\s'"` + "`" + `]*)?)*`)
)

var fenceTags = map[string]bool{
	"":          true,
	"bash":      true,
	"sh":        true,
	"shell":     true,
	"console":   true,
	"zsh":       true,
	"multipass": true,
}

// trailingPunct is trimmed from line and scan candidates written as prose.
const trailingPunct = ".,;:!?)"

// Extract returns the command candidates found in text. Text that never
// mentions the control binary yields no candidates.
func Extract(text string) []Candidate {
	if !binaryPattern.MatchString(text) {
		return nil
	}
	for _, s := range Strategies {
		if found := s.Find(text); len(found) > 0 {
			return found
		}
	}
	return nil
}

func findFenced(text string) []Candidate {
	var out []Candidate
	for _, m := range fencedBlock.FindAllStringSubmatchIndex(text, -1) {
		tag := ""
		if m[2] >= 0 {
			tag = strings.ToLower(text[m[2]:m[3]])
		}
		if !fenceTags[tag] {
			continue
		}
		body := text[m[4]:m[5]]
		if tag != Binary && !binaryPattern.MatchString(body) {
			continue
		}
		out = append(out, trimmed(text, m[4], m[5], StrategyFenced, ""))
	}
	return out
}

func findQuoted(text string) []Candidate {
	var out []Candidate
	forEachLine(text, func(start, end int) {
		line := strings.TrimSpace(text[start:end])
		if len(line) < 2 {
			return
		}
		q := line[0]
		if (q != '\'' && q != '"' && q != '`') || line[len(line)-1] != q {
			return
		}
		inner := strings.TrimSpace(strings.Trim(line, string(q)))
		if inner == "" || !startsWithBinary(inner) {
			return
		}
		offset := start + strings.Index(text[start:end], inner)
		out = append(out, trimmed(text, offset, offset+len(inner), StrategyQuoted, trailingPunct))
	})
	return out
}

func findLines(text string) []Candidate {
	var out []Candidate
	forEachLine(text, func(start, end int) {
		line := text[start:end]
		body := strings.TrimLeft(line, " \t")
		if rest, ok := strings.CutPrefix(body, "$ "); ok {
			body = strings.TrimLeft(rest, " \t")
		}
		if !startsWithBinary(body) || len(strings.TrimSpace(body)) == len(Binary) {
			return
		}
		out = append(out, trimmed(text, start+len(line)-len(body), end, StrategyLine, trailingPunct))
	})
	return out
}

func scanText(text string) []Candidate {
	var out []Candidate
	for _, m := range scanPattern.FindAllStringIndex(text, -1) {
		out = append(out, trimmed(text, m[0], m[1], StrategyScan, trailingPunct))
	}
	return out
}

func startsWithBinary(s string) bool {
	if len(s) < len(Binary) || !strings.EqualFold(s[:len(Binary)], Binary) {
		return false
	}
	return len(s) == len(Binary) || s[len(Binary)] == ' ' || s[len(Binary)] == '\t'
}

func forEachLine(text string, fn func(start, end int)) {
	start := 0
	for start <= len(text) {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += start
		}
		lineEnd := end
		if lineEnd > start && text[lineEnd-1] == '\r' {
			lineEnd--
		}
		fn(start, lineEnd)
		start = end + 1
	}
}

// trimmed builds a candidate for text[start:end] with surrounding space and
// the given trailing characters removed, keeping the span accurate.
func trimmed(text string, start, end int, strategy, cutset string) Candidate {
	s := text[start:end]
	left := len(s) - len(strings.TrimLeft(s, " \t\r\n"))
	s = strings.TrimRight(strings.TrimRight(s[left:], " \t\r\n"+cutset), " \t\r\n")
	return Candidate{
		Text:     s,
		Start:    start + left,
		End:      start + left + len(s),
		Strategy: strategy,
	}
}
