package rpt

import (
	"golang.org/x/text/encoding/unicode"
)

// decodeUTF16 decodes a BOM-stripped UTF-16 header line, returning the raw
// bytes as a string if decoding fails. Its only caller is decodeHeaderLine;
// Open rejects input that does not start with the ASCII RPTFILEHDR prefix
// before that point, so a UTF-16 header is not decoded by Open.
func decodeUTF16(b []byte, bigEndian bool) string {
	endian := unicode.LittleEndian
	if bigEndian {
		endian = unicode.BigEndian
	}
	dec := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()
	out, err := dec.Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
