package markdown

import "strings"

// DisplayText converts raw block text into the plain string shown in the
// outline: [[Page]] brackets are dropped, #[[long tag]] becomes #long tag,
// and ((uid)) tokens are replaced through resolve when the referenced text is
// cached. Unresolvable refs keep their raw token so nothing is hidden.
func DisplayText(text string, resolve func(uid string) (string, bool)) string {
	var b strings.Builder
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		switch {
		case hasAt(rs, i, "[["):
			if val, end, ok := scanBracketed(rs, i+2, "]]"); ok {
				b.WriteString(val)
				i = end - 1
				continue
			}
			b.WriteRune(rs[i])
		case hasAt(rs, i, "#["):
			if hasAt(rs, i+1, "[[") {
				if val, end, ok := scanBracketed(rs, i+3, "]]"); ok {
					b.WriteByte('#')
					b.WriteString(val)
					i = end - 1
					continue
				}
			}
			b.WriteRune(rs[i])
		case hasAt(rs, i, "(("):
			if uid, end, ok := scanBracketed(rs, i+2, "))"); ok {
				if resolve != nil {
					if txt, found := resolve(strings.TrimSpace(uid)); found {
						b.WriteString(txt)
						i = end - 1
						continue
					}
				}
				b.WriteString("((")
				b.WriteString(uid)
				b.WriteString("))")
				i = end - 1
				continue
			}
			b.WriteRune(rs[i])
		default:
			b.WriteRune(rs[i])
		}
	}
	return b.String()
}

// DisplayWidth is the rune count of the first line of the rendered display
// text. Normal-mode cursor positions are clamped to this.
func DisplayWidth(text string, resolve func(uid string) (string, bool)) int {
	line := DisplayText(text, resolve)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return len([]rune(line))
}
