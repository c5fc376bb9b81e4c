package telegram

import (
	"strings"
	"unicode/utf16"
)

// MaxMessageLength is the Bot API limit on sendMessage text, in UTF-16
// code units.
const MaxMessageLength = 4096

// SplitText breaks text into chunks of at most maxLen UTF-16 code units,
// cutting at line boundaries where possible. Lines longer than maxLen are
// cut between runes. A maxLen <= 0 disables splitting.
func SplitText(text string, maxLen int) []string {
	if maxLen <= 0 || LenUTF16(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	curLen := 0

	for line := range strings.SplitSeq(text, "\n") {
		lineLen := LenUTF16(line)

		// The joining newline counts only when the chunk already has text.
		sep := 0
		if current.Len() > 0 {
			sep = 1
		}

		if curLen+sep+lineLen > maxLen {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
				curLen, sep = 0, 0
			}
			if lineLen > maxLen {
				parts := forceSplit(line, maxLen)
				chunks = append(chunks, parts[:len(parts)-1]...)
				line = parts[len(parts)-1]
				lineLen = LenUTF16(line)
			}
		}

		if sep == 1 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
		curLen += sep + lineLen
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// forceSplit breaks a single long line into pieces of at most maxLen
// UTF-16 code units without cutting a surrogate pair.
func forceSplit(line string, maxLen int) []string {
	var parts []string
	var b strings.Builder
	n := 0
	for _, r := range line {
		rl := utf16.RuneLen(r)
		if n+rl > maxLen && n > 0 {
			parts = append(parts, b.String())
			b.Reset()
			n = 0
		}
		b.WriteRune(r)
		n += rl
	}
	if n > 0 {
		parts = append(parts, b.String())
	}
	return parts
}
