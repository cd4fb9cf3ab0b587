package license

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

// keyAlphabet is the unambiguous character set for generated keys.
// I, O, 0, and 1 are excluded; 32 characters divide the byte range
// evenly, so sampling carries no modulo bias.
const keyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// KeyFormat describes the shape of generated license keys.
type KeyFormat struct {
	Groups      int    // Number of character groups.
	GroupLength int    // Characters per group.
	Separator   string // Delimiter between groups.
}

// DefaultKeyFormat produces keys like XXXX-XXXX-XXXX-XXXX.
var DefaultKeyFormat = KeyFormat{Groups: 4, GroupLength: 4, Separator: "-"}

// normalize fills in defaults for unset format fields.
func (f KeyFormat) normalize() KeyFormat {
	if f.Groups <= 0 {
		f.Groups = DefaultKeyFormat.Groups
	}
	if f.GroupLength <= 0 {
		f.GroupLength = DefaultKeyFormat.GroupLength
	}
	if f.Separator == "" {
		f.Separator = DefaultKeyFormat.Separator
	}
	return f
}

// GenerateKey creates one random license key in the given format.
func GenerateKey(format KeyFormat) (string, error) {
	format = format.normalize()

	total := format.Groups * format.GroupLength
	raw := make([]byte, total)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("license: generate key: %w", err)
	}

	var b strings.Builder
	b.Grow(total + (format.Groups-1)*len(format.Separator))
	for i := 0; i < total; i++ {
		if i > 0 && i%format.GroupLength == 0 {
			b.WriteString(format.Separator)
		}
		b.WriteByte(keyAlphabet[int(raw[i])%len(keyAlphabet)])
	}
	return b.String(), nil
}
