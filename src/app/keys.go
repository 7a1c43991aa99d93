package app

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ImagePrefix     = "images/"
	timestampLayout = "20060102T150405"
	// displayNameMinLen guards against stripping a segment from names that
	// are too short to carry a timestamp prefix.
	displayNameMinLen = 16
)

// KeyCodec turns client filenames into storage keys and back.
type KeyCodec struct {
	now func() time.Time
}

func NewKeyCodec() *KeyCodec {
	return &KeyCodec{now: time.Now}
}

// NewKeyCodecWithClock is used by tests that need stable keys.
func NewKeyCodecWithClock(now func() time.Time) *KeyCodec {
	return &KeyCodec{now: now}
}

// DeriveKey builds images/<UTC timestamp>_<filename>, with spaces replaced by
// underscores. Nothing else in the filename is touched.
func (k *KeyCodec) DeriveKey(filename string) string {
	return k.build(k.timestamp(), filename)
}

// DisambiguatedKey is DeriveKey with a short random tag appended to the
// timestamp segment, used when the plain key is already taken.
func (k *KeyCodec) DisambiguatedKey(filename string) string {
	tag := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return k.build(k.timestamp()+"-"+tag, filename)
}

func (k *KeyCodec) timestamp() string {
	return k.now().UTC().Format(timestampLayout)
}

func (k *KeyCodec) build(stamp, filename string) string {
	return ImagePrefix + stamp + "_" + strings.ReplaceAll(filename, " ", "_")
}

// ParseDisplayName recovers a display name from a key. It is a heuristic:
// the first "_"-separated segment is dropped only when the name is long
// enough to plausibly carry a timestamp.
func ParseDisplayName(key string) string {
	name := strings.TrimPrefix(key, ImagePrefix)
	if len(name) > displayNameMinLen {
		if _, rest, found := strings.Cut(name, "_"); found {
			return rest
		}
	}
	return name
}
