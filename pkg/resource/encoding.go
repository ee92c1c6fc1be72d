package resource

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Encoding is a resource content-encoding negotiated between client and
// exporter via the x_jmp_content_encoding / x_jmp_accept_encoding stream
// metadata keys.
type Encoding string

const (
	EncodingNone Encoding = ""
	EncodingGzip Encoding = "gzip"
	// EncodingXZ and EncodingBzip2 are recognized and can be negotiated
	// away from, but compress/gzip is the only codec in the standard
	// library with write-side support; xz and bzip2 decoders exist in
	// the standard toolchain's extended packages but no encoder does, so
	// neither is in the default allow-set. See DESIGN.md.
	EncodingXZ    Encoding = "xz"
	EncodingBzip2 Encoding = "bzip2"
)

// AllowedEncodings returns the set of encodings this exporter will accept
// from a client, read from JMP_ALLOWED_ENCODINGS (comma-separated) with a
// default of {gzip} when unset.
func AllowedEncodings() map[Encoding]bool {
	raw := os.Getenv("JMP_ALLOWED_ENCODINGS")
	if raw == "" {
		return map[Encoding]bool{EncodingGzip: true}
	}
	allowed := map[Encoding]bool{}
	for _, part := range strings.Split(raw, ",") {
		e := Encoding(strings.TrimSpace(part))
		if e != "" {
			allowed[e] = true
		}
	}
	return allowed
}

// Negotiate picks the first of accept (in client preference order) present
// in allowed, or EncodingNone if none match.
func Negotiate(accept []Encoding, allowed map[Encoding]bool) Encoding {
	for _, e := range accept {
		if allowed[e] {
			return e
		}
	}
	return EncodingNone
}

// DecodeReader wraps r with the inverse of Encoding, used by a driver call
// handler reading a ClientStream resource whose ContentEncoding is set.
func DecodeReader(r io.Reader, enc Encoding) (io.Reader, error) {
	switch enc {
	case EncodingNone:
		return r, nil
	case EncodingGzip:
		return gzip.NewReader(r)
	default:
		return nil, fmt.Errorf("resource: no decoder available for encoding %q", enc)
	}
}

// EncodeWriter wraps w with Encoding on the write side, used when a
// resource is produced by the exporter and consumed by the client (not
// currently exercised by any built-in driver, but symmetric with
// DecodeReader for completeness).
func EncodeWriter(w io.Writer, enc Encoding) (io.WriteCloser, error) {
	switch enc {
	case EncodingNone:
		return nopWriteCloser{w}, nil
	case EncodingGzip:
		return gzip.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("resource: no encoder available for encoding %q", enc)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
