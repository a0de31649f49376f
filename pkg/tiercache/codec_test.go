package tiercache_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheforge/tiercache/pkg/tiercache"
)

func TestCodec_SmallStructuredValueUsesJSONFastPath(t *testing.T) {
	codec := tiercache.NewCodec(1000, 6)
	payload, err := codec.Encode(map[string]interface{}{"a": float64(1)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "rawj:"))

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, decoded)
}

func TestCodec_LargeStringCompresses(t *testing.T) {
	codec := tiercache.NewCodec(1000, 6)
	large := strings.Repeat("x", 2000)

	payload, err := codec.Encode(large)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "compressed:"))

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, large, decoded)
}

func TestCodec_MidSizeStringUsesRawPath(t *testing.T) {
	codec := tiercache.NewCodec(1000, 6)
	value := strings.Repeat("y", 500)

	payload, err := codec.Encode(value)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "raw:") || strings.HasPrefix(string(payload), "rawj:"))

	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, value, decoded)
}

func TestCodec_CompressionReportsRatioBelowOne(t *testing.T) {
	codec := tiercache.NewCodec(100, 6)
	var reportedOriginal, reportedCompressed int
	codec.OnCompression = func(originalSize, compressedSize int, _ time.Duration) {
		reportedOriginal = originalSize
		reportedCompressed = compressedSize
	}

	large := strings.Repeat("z", 5000)
	payload, err := codec.Encode(large)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "compressed:"))
	assert.Equal(t, 5000, reportedOriginal)
	assert.Less(t, reportedCompressed, reportedOriginal)
}

func TestCodec_DecodeHandlesLegacyUnprefixedJSONPayload(t *testing.T) {
	codec := tiercache.NewCodec(1000, 6)
	legacy := []byte(`{"legacy":true}`)

	decoded, err := codec.Decode(legacy)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"legacy": true}, decoded)
}

func TestCodec_RoundTripsEveryEncodingPath(t *testing.T) {
	codec := tiercache.NewCodec(50, 6)
	values := []interface{}{
		"short",
		strings.Repeat("long", 100),
		map[string]interface{}{"nested": map[string]interface{}{"n": float64(2)}},
		float64(42),
		true,
	}

	for _, v := range values {
		payload, err := codec.Encode(v)
		require.NoError(t, err)
		decoded, err := codec.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
	}
}
