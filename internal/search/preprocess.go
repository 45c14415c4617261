package search

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// SlideFacts returns the indexable facts of a slide: its flattened content,
// or the topic alone when the slide carries no content.
func SlideFacts(sl domain.Slide) []string {
	if facts := FlattenContent(sl.Content); len(facts) > 0 {
		return facts
	}
	if t := strings.TrimSpace(sl.Topic); t != "" {
		return []string{t}
	}
	return nil
}

// FlattenContent splits extracted slide text into standalone facts.
//
// Notes:
//   - Table rows ("| a | b |") become one fact each; separator rows and
//     bare "text" header cells are skipped.
//   - Bullet markers are stripped.
//   - Other lines are split into sentences.
func FlattenContent(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	out := make([]string, 0, 8)
	writeFact := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, "text") {
			return
		}
		out = append(out, s)
	}

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		// table row: "| ... |"
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			cols := strings.Split(strings.Trim(line, "|"), "|")
			allSep := true
			cleaned := make([]string, 0, len(cols))
			for _, c := range cols {
				cell := strings.TrimSpace(c)
				if cell != "" {
					cleaned = append(cleaned, cell)
				}
				tmp := strings.ReplaceAll(cell, ":", "")
				tmp = strings.ReplaceAll(tmp, "-", "")
				if strings.TrimSpace(tmp) != "" {
					allSep = false
				}
			}
			if allSep || len(cleaned) == 0 {
				continue
			}
			writeFact(strings.Join(cleaned, " "))
			continue
		}

		line = bulletRE.ReplaceAllString(line, "")
		for _, s := range splitSentences(line) {
			writeFact(s)
		}
	}
	// Lines longer than the scanner buffer end the scan; keep what was read.
	return out
}

var (
	bulletRE   = regexp.MustCompile(`^(?:[-*•·▪]+|\d+[.)])\s+`)
	sentenceRE = regexp.MustCompile(`[.!?]+\s+`)
)

// splitSentences cuts s after sentence punctuation followed by whitespace.
func splitSentences(s string) []string {
	idx := sentenceRE.FindAllStringIndex(s, -1)
	if len(idx) == 0 {
		return []string{s}
	}
	out := make([]string, 0, len(idx)+1)
	start := 0
	for _, m := range idx {
		// keep the punctuation, drop the trailing whitespace
		end := m[0] + len(strings.TrimRight(s[m[0]:m[1]], " \t"))
		out = append(out, s[start:end])
		start = m[1]
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
