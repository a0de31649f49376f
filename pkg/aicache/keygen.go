// Package aicache extends the generic tiered cache with AI-aware key
// construction, tier classification, operation-specific TTLs, and
// tier-aware promotion, the way the teacher's SemanticCache layers
// query normalization and embedding-similarity lookup on top of its
// own Redis-backed cache (pkg/embedding/cache/semantic_cache.go). The
// AI cache in this module keeps the teacher's "thin AI-aware layer
// over a generic cache" shape but replaces semantic/vector lookup
// (out of this spec's scope) with content-addressed exact-match
// keys.
package aicache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Tier is a text-length size category, per spec.md §4.5.
type Tier string

// Tiers, in ascending size order.
const (
	TierSmall   Tier = "small"
	TierMedium  Tier = "medium"
	TierLarge   Tier = "large"
	TierXLarge  Tier = "xlarge"
	TierUnknown Tier = "unknown"
)

// KeyGenerator builds content-addressed cache keys for AI inputs and
// extracts tier/operation metadata back out of an existing key.
type KeyGenerator struct {
	TextHashThreshold int
	HashAlgorithm     func([]byte) string
}

// NewKeyGenerator builds a KeyGenerator using SHA-256 hex digests,
// the default hash algorithm spec.md §4.5 names explicitly.
func NewKeyGenerator(textHashThreshold int) *KeyGenerator {
	return &KeyGenerator{
		TextHashThreshold: textHashThreshold,
		HashAlgorithm:     sha256Hex,
	}
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BuildKey composes
// "ai_cache:op:<operation>|tier:<tier>|txt:<text-or-hash>|opts:<fingerprint>",
// hashing text once it exceeds TextHashThreshold and options always
// (via a stable, sorted-key serialization) per spec.md §4.5. tier is
// embedded so ExtractTier can recover it later without the caller
// having to re-classify the original text.
func (g *KeyGenerator) BuildKey(text, operation string, tier Tier, options map[string]interface{}) string {
	var textPart string
	if len(text) <= g.TextHashThreshold {
		textPart = text
	} else {
		textPart = "hash:" + g.HashAlgorithm([]byte(text))
	}

	fingerprint := g.HashAlgorithm([]byte(stableSerialize(options)))[:16]

	return fmt.Sprintf("ai_cache:op:%s|tier:%s|txt:%s|opts:%s", operation, tier, textPart, fingerprint)
}

// stableSerialize produces a deterministic JSON rendering of options
// by sorting map keys before marshaling, so two semantically
// identical option sets always fingerprint the same way.
func stableSerialize(options map[string]interface{}) string {
	if len(options) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		encodedKey, _ := json.Marshal(k)
		encodedValue, err := json.Marshal(options[k])
		if err != nil {
			encodedValue = []byte(fmt.Sprintf("%q", fmt.Sprint(options[k])))
		}
		b.Write(encodedKey)
		b.WriteByte(':')
		b.Write(encodedValue)
	}
	b.WriteByte('}')
	return b.String()
}

var operationKeyPattern = regexp.MustCompile(`[:|]op:([A-Za-z_][A-Za-z0-9_]*)\|`)
var tierKeyPattern = regexp.MustCompile(`\|tier:([A-Za-z0-9_\-]+)\|`)

// ExtractOperation parses the "op:<operation>" segment from a key
// built by BuildKey (or a manually constructed key following the same
// convention), validating it as identifier-shaped. Returns "unknown"
// when absent or malformed.
func ExtractOperation(key string) string {
	match := operationKeyPattern.FindStringSubmatch(key)
	if match == nil {
		return "unknown"
	}
	return match[1]
}

// ExtractTier parses the optional embedded "|tier:<size>|" segment,
// falling back to "unknown" when absent, per spec.md §4.5.
func ExtractTier(key string) string {
	match := tierKeyPattern.FindStringSubmatch(key)
	if match == nil {
		return string(TierUnknown)
	}
	return match[1]
}

// TierClassifier maps text length onto a size tier via three
// ascending thresholds.
type TierClassifier struct {
	SmallMax  int
	MediumMax int
	LargeMax  int
}

// NewTierClassifier builds a classifier from ascending thresholds.
// Defaults per spec.md §4.5 are 500 / 5,000 / 50,000.
func NewTierClassifier(small, medium, large int) *TierClassifier {
	return &TierClassifier{SmallMax: small, MediumMax: medium, LargeMax: large}
}

// Classify returns the size tier for a text of the given length.
func (c *TierClassifier) Classify(textLength int) Tier {
	switch {
	case textLength <= c.SmallMax:
		return TierSmall
	case textLength <= c.MediumMax:
		return TierMedium
	case textLength <= c.LargeMax:
		return TierLarge
	default:
		return TierXLarge
	}
}
