// Package normalize repairs the handful of markdown adjacency defects model
// output commonly has before it reaches the renderer. It is a fixed pipeline
// of line-oriented passes, not a parser, and leaves anything else as-is.
package normalize

import (
	"regexp"
	"strings"
)

var (
	blankRun = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
	heading  = regexp.MustCompile(`^#{1,6}(?:[^#]|$)`)

	lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// passes run in order, each on the previous pass's output.
var passes = []func(string) string{
	collapseBlankLines,
	joinHeadingToTable,
	joinTableRows,
	terminateTables,
}

// Normalize applies every pass. Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	s := lineEndings.Replace(raw)
	for _, p := range passes {
		s = p(s)
	}
	return s
}

// collapseBlankLines turns any run of two or more line breaks, with only
// whitespace between them, into a single line break.
func collapseBlankLines(s string) string {
	return blankRun.ReplaceAllString(s, "\n")
}

// joinHeadingToTable drops blank lines between a heading and the table row
// that follows it.
func joinHeadingToTable(s string) string {
	return dropBlanksBetween(s, isHeading, isTableRow)
}

// joinTableRows drops blank lines between two table rows.
func joinTableRows(s string) string {
	return dropBlanksBetween(s, isTableRow, isTableRow)
}

// terminateTables puts a blank line between a table's last row and a
// following line of prose.
func terminateTables(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		out = append(out, line)
		if i+1 < len(lines) && isTableRow(line) && !isTableRow(lines[i+1]) && !isBlank(lines[i+1]) {
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}

// dropBlanksBetween removes runs of blank lines that sit between a line
// matching before and a line matching after.
func dropBlanksBetween(s string, before, after func(string) bool) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		out = append(out, lines[i])
		if !before(lines[i]) {
			continue
		}
		j := i + 1
		for j < len(lines) && isBlank(lines[j]) {
			j++
		}
		if j > i+1 && j < len(lines) && after(lines[j]) {
			i = j - 1
		}
	}
	return strings.Join(out, "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isTableRow(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "|")
}

func isHeading(line string) bool {
	return heading.MatchString(strings.TrimLeft(line, " "))
}
