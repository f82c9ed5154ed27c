package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/lu4p/cat"
	"github.com/richardlehane/mscfb"
)

// oleMagic is the compound file signature of Word 97-2003 documents.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// FIB offsets (Word 97 binary format).
const (
	fibIdent      = 0x0000
	fibFlags      = 0x000A
	fibFcClx      = 0x01A2
	fibLcbClx     = 0x01A6
	wordIdent     = 0xA5EC
	flagWhichTbl  = 0x0200
	pcdSize       = 8
	fcCompressed  = 0x40000000
	fcOffsetMask  = 0x3FFFFFFF
	clxPrcType    = 0x01
	clxPcdtType   = 0x02
	maxPieceCount = 1 << 20
)

// extractDOC extracts text from a .doc file. Word 97 compound files are decoded through their
// piece table; files saved as RTF with a .doc name go through lu4p/cat; anything else is read
// as plain UTF-8 text.
func extractDOC(content []byte) (string, error) {
	switch {
	case bytes.HasPrefix(content, oleMagic):
		return extractWord97(content)
	case bytes.HasPrefix(content, []byte(`{\rtf`)):
		text, err := cat.FromBytes(content)
		if err != nil {
			return "", fmt.Errorf("extract DOC: rtf: %w", err)
		}
		return strings.TrimSpace(text), nil
	default:
		return extractPlain(content)
	}
}

func extractWord97(content []byte) (string, error) {
	doc, err := mscfb.New(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("extract DOC: open compound file: %w", err)
	}
	streams := make(map[string][]byte)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			data, rerr := io.ReadAll(entry)
			if rerr != nil {
				return "", fmt.Errorf("extract DOC: read %s: %w", entry.Name, rerr)
			}
			streams[entry.Name] = data
		}
	}
	word, ok := streams["WordDocument"]
	if !ok {
		return "", errors.New("extract DOC: WordDocument stream not found")
	}
	if len(word) < fibLcbClx+4 || binary.LittleEndian.Uint16(word[fibIdent:]) != wordIdent {
		return "", errors.New("extract DOC: invalid file information block")
	}
	tableName := "0Table"
	if binary.LittleEndian.Uint16(word[fibFlags:])&flagWhichTbl != 0 {
		tableName = "1Table"
	}
	table, ok := streams[tableName]
	if !ok {
		return "", fmt.Errorf("extract DOC: %s stream not found", tableName)
	}
	fcClx := binary.LittleEndian.Uint32(word[fibFcClx:])
	lcbClx := binary.LittleEndian.Uint32(word[fibLcbClx:])
	if uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return "", errors.New("extract DOC: piece table out of range")
	}
	plc, err := findPlcPcd(table[fcClx : fcClx+lcbClx])
	if err != nil {
		return "", err
	}
	raw, err := decodePieces(word, plc)
	if err != nil {
		return "", err
	}
	return cleanWordText(raw), nil
}

// findPlcPcd skips the Prc entries of a Clx and returns the PlcPcd payload.
func findPlcPcd(clx []byte) ([]byte, error) {
	i := 0
	for i < len(clx) {
		switch clx[i] {
		case clxPrcType:
			if i+3 > len(clx) {
				return nil, errors.New("extract DOC: truncated Prc")
			}
			cb := int(int16(binary.LittleEndian.Uint16(clx[i+1:])))
			if cb < 0 {
				return nil, errors.New("extract DOC: invalid Prc size")
			}
			i += 3 + cb
		case clxPcdtType:
			if i+5 > len(clx) {
				return nil, errors.New("extract DOC: truncated Pcdt")
			}
			lcb := int(binary.LittleEndian.Uint32(clx[i+1:]))
			start := i + 5
			if lcb < 0 || start+lcb > len(clx) {
				return nil, errors.New("extract DOC: Pcdt out of range")
			}
			return clx[start : start+lcb], nil
		default:
			return nil, fmt.Errorf("extract DOC: unexpected Clx entry 0x%02x", clx[i])
		}
	}
	return nil, errors.New("extract DOC: piece table not found")
}

// decodePieces concatenates the text of every piece described by plc.
func decodePieces(word, plc []byte) (string, error) {
	// PlcPcd is (n+1) uint32 character positions followed by n 8-byte piece descriptors.
	if len(plc) < 4 || (len(plc)-4)%(4+pcdSize) != 0 {
		return "", errors.New("extract DOC: malformed piece table")
	}
	n := (len(plc) - 4) / (4 + pcdSize)
	if n > maxPieceCount {
		return "", errors.New("extract DOC: too many pieces")
	}
	var b strings.Builder
	for k := 0; k < n; k++ {
		cpStart := binary.LittleEndian.Uint32(plc[4*k:])
		cpEnd := binary.LittleEndian.Uint32(plc[4*(k+1):])
		if cpEnd < cpStart {
			return "", errors.New("extract DOC: piece positions out of order")
		}
		count := int(cpEnd - cpStart)
		pcd := plc[4*(n+1)+k*pcdSize:]
		fc := binary.LittleEndian.Uint32(pcd[2:])
		if fc&fcCompressed != 0 {
			off := int(fc&fcOffsetMask) / 2
			if off+count > len(word) {
				return "", errors.New("extract DOC: piece out of range")
			}
			for _, c := range word[off : off+count] {
				b.WriteRune(cp1252Rune(c))
			}
			continue
		}
		off := int(fc & fcOffsetMask)
		if off+2*count > len(word) {
			return "", errors.New("extract DOC: piece out of range")
		}
		units := make([]uint16, count)
		for j := range units {
			units[j] = binary.LittleEndian.Uint16(word[off+2*j:])
		}
		b.WriteString(string(utf16.Decode(units)))
	}
	return b.String(), nil
}

// cp1252High maps bytes 0x80-0x9F of Windows-1252 to Unicode; other bytes map to themselves.
var cp1252High = [32]rune{
	0x20AC, 0x0081, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
	0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0x008D, 0x017D, 0x008F,
	0x0090, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
	0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0x009D, 0x017E, 0x0178,
}

func cp1252Rune(c byte) rune {
	if c >= 0x80 && c < 0xA0 {
		return cp1252High[c-0x80]
	}
	return rune(c)
}

// cleanWordText maps Word control characters to plain text: paragraph and line marks become
// newlines, cell marks become tabs, field markers and other control characters are dropped.
func cleanWordText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r' || r == 0x0B || r == 0x0C:
			b.WriteByte('\n')
		case r == 0x07:
			b.WriteByte('\t')
		case r == '\t' || r == '\n':
			b.WriteRune(r)
		case r < 0x20:
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
