package telegram

import "strings"

// markdownSpecialChars lists the characters that start an entity in the
// legacy Markdown parse mode.
var markdownSpecialChars = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	"`", "\\`",
	`[`, `\[`,
)

// markdownV2SpecialChars lists all characters that must be escaped in Telegram MarkdownV2.
var markdownV2SpecialChars = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`~`, `\~`,
	"`", "\\`",
	`>`, `\>`,
	`#`, `\#`,
	`+`, `\+`,
	`-`, `\-`,
	`=`, `\=`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`.`, `\.`,
	`!`, `\!`,
)

// EscapeMarkdown escapes user text for ParseModeMarkdown.
func EscapeMarkdown(text string) string {
	return markdownSpecialChars.Replace(text)
}

// EscapeMarkdownV2 escapes all special characters for ParseModeMarkdownV2.
func EscapeMarkdownV2(text string) string {
	return markdownV2SpecialChars.Replace(text)
}
