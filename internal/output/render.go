package output

import "strings"

// HexField renders bytes as space-separated hex pairs, padded to width
// columns so following fields line up. Bytes past width are not rendered.
func HexField(b []byte, width int) string {
	var sb strings.Builder
	sb.Grow(width * 3)
	n := len(b)
	if n > width {
		n = width
	}
	const digits = "0123456789abcdef"
	for _, v := range b[:n] {
		sb.WriteByte(digits[v>>4])
		sb.WriteByte(digits[v&0x0f])
		sb.WriteByte(' ')
	}
	for i := n; i < width; i++ {
		sb.WriteString("   ")
	}
	return sb.String()
}

// ASCIIField renders visible ASCII (0x21 through 0x7e) as itself and maps
// everything else, space included, to a dot.
func ASCIIField(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, v := range b {
		if v >= 0x21 && v <= 0x7e {
			sb.WriteByte(v)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

// Hyperlink wraps text in an OSC-8 terminal hyperlink.
func Hyperlink(text, link string) string {
	return "\x1b]8;;" + link + "\x1b\\" + text + "\x1b]8;;\x1b\\"
}

// Dim renders text with the faint SGR attribute.
func Dim(text string) string {
	return "\x1b[2m" + text + "\x1b[0m"
}
