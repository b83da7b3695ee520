package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

func PointerTo[T any](v T) *T {
	return &v
}

// HashFingerprint converts an arbitrary string to its SHA-256 hex digest.
// Used to bind cursors to their filter and confirmation tokens to their
// action signature without storing the plaintext.
func HashFingerprint(s string) string {
	if s == "" {
		return ""
	}
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// CanonicalJSON renders a parameter object with sorted keys so that two
// semantically equal objects always fingerprint identically.
func CanonicalJSON(args Arguments) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kj, _ := json.Marshal(k)
		b.Write(kj)
		b.WriteByte(':')
		vj, err := json.Marshal(args[k])
		if err != nil {
			vj = []byte(`null`)
		}
		b.Write(vj)
	}
	b.WriteByte('}')
	return b.String()
}
