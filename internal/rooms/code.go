package rooms

import "strings"

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultCodeLength is the room code length used when none is configured.
const DefaultCodeLength = 4

// GenerateCode draws length uppercase letters using intn until taken reports the
// code as free. There is no retry bound; the code space is far larger than the
// number of rooms a single process holds.
func GenerateCode(length int, taken func(string) bool, intn func(int) int) string {
	if length <= 0 {
		length = DefaultCodeLength
	}
	var sb strings.Builder
	for {
		sb.Reset()
		sb.Grow(length)
		for i := 0; i < length; i++ {
			sb.WriteByte(codeAlphabet[intn(len(codeAlphabet))])
		}
		code := sb.String()
		if taken == nil || !taken(code) {
			return code
		}
	}
}

// NormalizeCode trims and upper-cases user input so "abcd " finds room "ABCD".
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
