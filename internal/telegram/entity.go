package telegram

import "unicode/utf16"

// SliceUTF16 returns the part of text between the UTF-16 code unit offsets
// from and to. Bounds are clamped to the text, so out-of-range offsets
// yield a shorter or empty string rather than a panic.
func SliceUTF16(text string, from, to int) string {
	units := utf16.Encode([]rune(text))
	from = max(from, 0)
	to = min(to, len(units))
	if from >= to {
		return ""
	}
	return string(utf16.Decode(units[from:to]))
}

// LenUTF16 returns the length of text in UTF-16 code units.
func LenUTF16(text string) int {
	n := 0
	for _, r := range text {
		n += utf16.RuneLen(r)
	}
	return n
}

// EntityText returns the text covered by e.
func EntityText(text string, e MessageEntity) string {
	return SliceUTF16(text, e.Offset, e.Offset+e.Length)
}
