package fetch

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// The upstream serves EUC-KR bodies while declaring no charset, or the
// ISO-8859-1 server default, or occasionally UTF-8. A declaration is trusted
// only when it is one the publisher actually uses; anything else goes
// through apparent-encoding detection with an EUC-KR last resort.
const fallbackCharset = "euc-kr"

// decodeBody converts raw response bytes to UTF-8 text, returning the
// charset that was actually applied.
func decodeBody(raw []byte, contentType string) (string, string, error) {
	charset := declaredCharset(contentType)
	if !trustedCharset(charset) {
		charset = detectCharset(raw)
	}
	if charset == "" {
		charset = fallbackCharset
	}

	enc, known := encodingFor(charset)
	if !known {
		charset = fallbackCharset
		enc, _ = encodingFor(charset)
	}
	if enc == nil {
		if !utf8.Valid(raw) {
			// Mislabeled UTF-8; the Korean legacy encoding is the only
			// plausible alternative this source produces.
			return decodeWith(raw, korean.EUCKR, fallbackCharset)
		}
		return string(raw), "utf-8", nil
	}
	return decodeWith(raw, enc, charset)
}

func decodeWith(raw []byte, enc encoding.Encoding, charset string) (string, string, error) {
	reader := transform.NewReader(bytes.NewReader(raw), enc.NewDecoder())
	out, err := io.ReadAll(reader)
	if err != nil {
		return "", charset, fmt.Errorf("transform body: %w", err)
	}
	return string(out), charset, nil
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}

// trustedCharset reports whether a declared charset is believable. The
// ISO-8859-1 family is the HTTP default a misconfigured server emits for
// Korean pages, so it never counts as a real declaration.
func trustedCharset(charset string) bool {
	switch charset {
	case "utf-8", "utf8", "euc-kr", "euckr", "cp949", "ks_c_5601-1987", "x-windows-949", "uhc":
		return true
	default:
		return false
	}
}

func detectCharset(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	result, err := chardet.NewHtmlDetector().DetectBest(raw)
	if err != nil || result == nil {
		return ""
	}
	return strings.ToLower(result.Charset)
}

// encodingFor maps a charset name onto a transformer. A nil encoding with
// known=true means the bytes are already UTF-8.
func encodingFor(charset string) (encoding.Encoding, bool) {
	switch charset {
	case "utf-8", "utf8", "ascii", "us-ascii":
		return nil, true
	case "euc-kr", "euckr", "cp949", "ks_c_5601-1987", "x-windows-949", "uhc":
		return korean.EUCKR, true
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, true
	case "windows-1252":
		return charmap.Windows1252, true
	default:
		return nil, false
	}
}
