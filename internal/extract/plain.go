package extract

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// extractPlain returns content as a string. Content must be valid UTF-8; a leading BOM is
// dropped and CRLF line endings are normalized to LF.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", errInvalidUTF8
	}
	s := strings.TrimPrefix(string(content), "\ufeff")
	return strings.ReplaceAll(s, "\r\n", "\n"), nil
}
