package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gracechapel/calsync/internal"
)

// canonical is the fixed-order serialization shape used for hashing. Optional
// fields become empty string or empty array so "field absent" and "field
// empty" fingerprint identically. Recurrence keeps its array order; rule
// order is semantically meaningful.
type canonical struct {
	Title        string   `json:"title"`
	Blurb        string   `json:"blurb"`
	Location     string   `json:"location"`
	DisplayNotes string   `json:"displayNotes"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	AllDay       bool     `json:"allDay"`
	TimeZone     string   `json:"timeZone"`
	Recurrence   []string `json:"recurrence"`
}

// Hash returns the change-detection fingerprint of a payload as a hex
// SHA-256 digest. Collision resistance is not load-bearing here; the digest
// only has to be stable across processes.
func Hash(p internal.PublicEventPayload) string {
	c := canonical{
		Title:        p.Title,
		Blurb:        p.Blurb,
		Location:     p.Location,
		DisplayNotes: p.DisplayNotes,
		Start:        p.Start,
		End:          p.End,
		AllDay:       p.AllDay,
		TimeZone:     p.TimeZone,
		Recurrence:   p.Recurrence,
	}
	if c.Recurrence == nil {
		c.Recurrence = []string{}
	}

	// Struct fields marshal in declaration order, which pins the key order.
	data, err := json.Marshal(c)
	if err != nil {
		// A flat struct of strings and bools cannot fail to marshal.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SeriesHash fingerprints a payload with the occurrence schedule blanked:
// start, end and the recurrence rules. A series mapping stores one hash
// covering every expanded occurrence; each occurrence carries its own start
// and end, and occurrences never carry the rules.
func SeriesHash(p internal.PublicEventPayload) string {
	p.Start, p.End = "", ""
	p.Recurrence = nil
	return Hash(p)
}

// StoredHash is the fingerprint recorded on a mapping when a payload is
// written out: recurring payloads hash timing-free so the stored hash
// matches every occurrence of the series, single events hash in full.
func StoredHash(p internal.PublicEventPayload) string {
	if len(p.Recurrence) > 0 {
		return SeriesHash(p)
	}
	return Hash(p)
}
