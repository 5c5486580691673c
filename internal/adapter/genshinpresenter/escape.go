package genshinpresenter

import "strings"

var markdownV2Escaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// EscapeMarkdownV2 escapes remote-supplied text for interpolation into a
// MarkdownV2 message. Remote names routinely contain markup-breaking
// characters; every dynamic value goes through here.
func EscapeMarkdownV2(s string) string {
	return markdownV2Escaper.Replace(s)
}
