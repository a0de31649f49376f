package tiercache

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"errors"
	"io"
	"time"
)

const (
	prefixCompressed = "compressed:"
	prefixRaw        = "raw:"
	prefixRawJSON    = "rawj:"
)

// ErrDecodeFailed is returned when a payload matches no known prefix
// and neither binary nor JSON deserialization succeeds.
var ErrDecodeFailed = errors.New("tiercache: unable to decode payload")

// CompressionObserver receives a notification whenever the codec
// actually compresses a payload, satisfying the monitor contract in
// spec.md §4.2 ("when compression actually occurs, the codec reports
// (original_size, compressed_size, elapsed) to the monitor").
type CompressionObserver func(originalSize, compressedSize int, elapsed time.Duration)

// Codec serializes values to the wire format and back, choosing
// between a JSON fast path, a gob-based general binary path, and
// gzip compression above a configured threshold. Grounded on the
// teacher's CompressionService (pkg/aicache/compression.go), with
// encryption stripped (out of this spec's scope) and the bespoke
// threshold/prefix scheme from the original Python cache's encoding
// algorithm substituted for the teacher's always-gzip behavior.
type Codec struct {
	CompressionThreshold int // bytes
	CompressionLevel     int // 1-9, gzip.BestSpeed..gzip.BestCompression
	OnCompression        CompressionObserver
}

// NewCodec builds a Codec with the given threshold and level. A
// non-positive level falls back to gzip.DefaultCompression.
func NewCodec(threshold, level int) *Codec {
	if level < 1 || level > 9 {
		level = gzip.DefaultCompression
	}
	return &Codec{CompressionThreshold: threshold, CompressionLevel: level}
}

// Encode implements spec.md §4.2's encoding algorithm: a JSON fast
// path for small structured values, a gob general path otherwise, and
// gzip compression of the general path above the threshold.
func (c *Codec) Encode(value interface{}) ([]byte, error) {
	jsonBytes, jsonErr := json.Marshal(value)
	if jsonErr == nil && len(jsonBytes) <= c.CompressionThreshold {
		return append([]byte(prefixRawJSON), jsonBytes...), nil
	}

	binary, err := encodeBinary(value)
	if err != nil {
		return nil, err
	}

	originalSize := len(binary)
	if rawString, ok := asRawSizeSource(value); ok {
		originalSize = rawString
	}

	if originalSize > c.CompressionThreshold {
		start := time.Now()
		compressed, err := gzipCompress(binary, c.CompressionLevel)
		if err != nil {
			return nil, err
		}
		elapsed := time.Since(start)
		if c.OnCompression != nil {
			c.OnCompression(originalSize, len(compressed), elapsed)
		}
		return append([]byte(prefixCompressed), compressed...), nil
	}

	return append([]byte(prefixRaw), binary...), nil
}

// asRawSizeSource returns the source-content size for values whose
// "natural" size differs from their gob-serialized size, per spec.md
// §4.2's original_size definition (raw length for string/bytes
// inputs, serialized length otherwise).
func asRawSizeSource(value interface{}) (int, bool) {
	switch v := value.(type) {
	case string:
		return len(v), true
	case []byte:
		return len(v), true
	default:
		return 0, false
	}
}

// Decode implements spec.md §4.2's dispatch: recognized prefixes route
// directly; unrecognized payloads (including legacy unprefixed ones)
// attempt binary decoding, then JSON, before failing.
func (c *Codec) Decode(payload []byte) (interface{}, error) {
	switch {
	case hasPrefix(payload, prefixCompressed):
		body := payload[len(prefixCompressed):]
		binary, err := gzipDecompress(body)
		if err != nil {
			return nil, err
		}
		return decodeBinary(binary)
	case hasPrefix(payload, prefixRaw):
		return decodeBinary(payload[len(prefixRaw):])
	case hasPrefix(payload, prefixRawJSON):
		var value interface{}
		if err := json.Unmarshal(payload[len(prefixRawJSON):], &value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		if value, err := decodeBinary(payload); err == nil {
			return value, nil
		}
		var value interface{}
		if err := json.Unmarshal(payload, &value); err == nil {
			return value, nil
		}
		return nil, ErrDecodeFailed
	}
}

func hasPrefix(payload []byte, prefix string) bool {
	return len(payload) >= len(prefix) && string(payload[:len(prefix)]) == prefix
}

func encodeBinary(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	boxed := gobBox{Value: value}
	if err := gob.NewEncoder(&buf).Encode(&boxed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeBinary(data []byte) (interface{}, error) {
	var boxed gobBox
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&boxed); err != nil {
		return nil, err
	}
	return boxed.Value, nil
}

// gobBox wraps an interface{} so gob can encode arbitrary concrete
// types registered by the caller. A value whose concrete type is not
// registered makes encodeBinary fail, and Encode returns that error.
type gobBox struct {
	Value interface{}
}

func gzipCompress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func init() {
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

// RegisterGobType registers a concrete type with gob so it can travel
// through the codec's general binary path inside an interface{}.
// Callers storing custom struct types that don't round-trip cleanly
// through JSON must call this once at startup for each such type.
func RegisterGobType(value interface{}) {
	gob.Register(value)
}
