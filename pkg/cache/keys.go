package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/trama-ai/trama/pkg/common"
)

// Key derives the response-cache key for a normalized segment. The kind is
// hashed in with a separator so the same text analyzed for entities and for
// relations never collides.
func Key(kind common.AnalysisKind, normalizedText string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(normalizedText))
	return hex.EncodeToString(h.Sum(nil))
}
