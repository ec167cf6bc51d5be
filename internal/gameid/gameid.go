// Package gameid generates sortable identifiers for tournaments, tables and
// hands: a UUIDv7 rendered as 26 characters of Crockford base32 under a short
// type prefix, e.g. "trn_01h455vb4pex5vsknk084sn02q".
package gameid

import (
	crand "crypto/rand"
	"strings"
	"time"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Prefixes for the entity kinds that get persisted ids.
const (
	TournamentPrefix = "trn"
	TablePrefix      = "tbl"
	HandPrefix       = "hnd"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Generator creates prefixed ids. The zero value is not usable; call New.
type Generator struct {
	clock Clock
	read  func([]byte) (int, error)
}

// New returns a production generator backed by the system clock and
// crypto/rand.
func New() *Generator {
	return &Generator{clock: systemClock{}, read: crand.Read}
}

// NewWithClock returns a generator using the given clock and random reader.
// Pass a nil reader to keep crypto/rand.
func NewWithClock(clock Clock, read func([]byte) (int, error)) *Generator {
	if read == nil {
		read = crand.Read
	}
	return &Generator{clock: clock, read: read}
}

// Tournament returns a new tournament id.
func (g *Generator) Tournament() string { return g.generate(TournamentPrefix) }

// Table returns a new table id.
func (g *Generator) Table() string { return g.generate(TablePrefix) }

// Hand returns a new hand id.
func (g *Generator) Hand() string { return g.generate(HandPrefix) }

func (g *Generator) generate(prefix string) string {
	return prefix + "_" + encodeBase32(g.uuidv7())
}

// uuidv7 builds a 128-bit UUIDv7: 48-bit millisecond timestamp, then random
// bits with the version and variant fields set.
func (g *Generator) uuidv7() [16]byte {
	var uuid [16]byte
	now := g.clock.Now().UnixMilli()
	uuid[0] = byte(now >> 40)
	uuid[1] = byte(now >> 32)
	uuid[2] = byte(now >> 24)
	uuid[3] = byte(now >> 16)
	uuid[4] = byte(now >> 8)
	uuid[5] = byte(now)

	if _, err := g.read(uuid[6:]); err != nil {
		panic("gameid: failed to read random bytes: " + err.Error())
	}
	uuid[6] = (uuid[6] & 0x0f) | 0x70
	uuid[8] = (uuid[8] & 0x3f) | 0x80
	return uuid
}

// encodeBase32 packs 16 bytes into 26 characters of Crockford base32, most
// significant bits first, matching TypeID's encoding.
func encodeBase32(b [16]byte) string {
	var sb strings.Builder
	sb.Grow(26)

	// 128 bits split into a leading 3-bit group and 25 five-bit groups.
	sb.WriteByte(alphabet[b[0]>>5])
	bits := uint32(b[0]) & 0x1f
	nbits := 5
	idx := 1
	for sb.Len() < 26 {
		for nbits < 5 && idx < 16 {
			bits = bits<<8 | uint32(b[idx])
			nbits += 8
			idx++
		}
		nbits -= 5
		sb.WriteByte(alphabet[(bits>>nbits)&0x1f])
		bits &= (1 << nbits) - 1
	}
	return sb.String()
}

// Kind returns the prefix of an id, "" if it has none.
func Kind(id string) string {
	i := strings.IndexByte(id, '_')
	if i < 0 {
		return ""
	}
	return id[:i]
}
