package share

import "strings"

const (
	componentSafe = "-_.!~*'()"
	uriReserved   = ";,/?:@&=+$#"
	upperhex      = "0123456789ABCDEF"
)

// EscapeComponent percent-encodes s the way browsers' encodeURIComponent does.
// Links are opened by web and native wallets alike, so the escaping has to match
// theirs byte for byte rather than net/url's query rules.
func EscapeComponent(s string) string {
	return escape(s, componentSafe)
}

// EscapeURI percent-encodes s like encodeURI: reserved URL characters are kept,
// an existing '%' is escaped again.
func EscapeURI(s string) string {
	return escape(s, componentSafe+uriReserved)
}

func escape(s, safe string) string {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) || (c < 0x80 && strings.IndexByte(safe, c) >= 0) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}

	return b.String()
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}
