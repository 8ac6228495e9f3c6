package resolver

import (
	"strings"
)

const upperHex = "0123456789ABCDEF"

// Decode はパーセントエンコードをバイト単位で復号する。
//
// "%%" は1つの "%" として扱う。16進数として解釈できない場合や、
// 後ろに2文字無い場合は "%" をそのまま残す
func Decode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' || i+1 >= len(s) {
			buf = append(buf, c)
			continue
		}
		if s[i+1] == '%' {
			buf = append(buf, '%')
			i++
			continue
		}
		if i+2 >= len(s) {
			buf = append(buf, c)
			continue
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			buf = append(buf, c)
			continue
		}
		buf = append(buf, hi<<4|lo)
		i += 2
	}
	return string(buf)
}

// Encode はhref用にファイル名をパーセントエンコードする。
// 英数字・空白・"/"・"_"・"." 以外のバイトは %XX (大文字) にする
func Encode(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldKeep(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0F])
	}
	return sb.String()
}

func shouldKeep(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == ' ', c == '/', c == '_', c == '.':
		return true
	}
	return false
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
