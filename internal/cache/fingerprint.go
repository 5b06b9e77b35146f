package cache

import (
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"quotepulse/internal/model"
)

// Fingerprint derives the cache key for a quote snapshot. It covers only
// the mutable content that affects scoring: each line item's id, name,
// cost and quantity in order, plus total, tax rate, markup rate, notes and
// the template flag. Timestamps and other metadata are ignored.
func Fingerprint(quoteID string, q *model.Quote) string {
	d := xxhash.New()
	if q != nil {
		writeInt(d, len(q.LineItems))
		for _, it := range q.LineItems {
			writeString(d, it.ID)
			writeString(d, it.Name)
			writeFloat(d, it.Cost)
			writeFloat(d, it.Quantity)
		}
		writeFloat(d, q.Total)
		writeFloat(d, q.TaxRate)
		writeFloat(d, q.MarkupRate)
		writeString(d, q.Notes)
		if q.IsTemplate {
			d.WriteString("T")
		} else {
			d.WriteString("F")
		}
	}
	var sum [8]byte
	return quoteID + ":" + hex.EncodeToString(d.Sum(sum[:0]))
}

// Length-prefixed so adjacent fields cannot run together
func writeString(d *xxhash.Digest, s string) {
	writeInt(d, len(s))
	d.WriteString(s)
}

func writeInt(d *xxhash.Digest, n int) {
	d.WriteString(strconv.Itoa(n))
	d.WriteString("|")
}

func writeFloat(d *xxhash.Digest, v float64) {
	d.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	d.WriteString("|")
}
