package checklist

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/zeebo/blake3"
)

// SnapshotLen is the length in hex characters of a snapshot identifier.
const SnapshotLen = 12

// Snapshot returns a short identifier of the checklist's visible state.
// Two checklists share a snapshot iff they list the same items with the
// same ids, texts, done flags and order.
func Snapshot(c *domain.Checklist) string {
	h := blake3.New()
	var buf [8]byte
	for _, it := range c.Items {
		binary.BigEndian.PutUint64(buf[:], uint64(it.ID))
		h.Write(buf[:])
		if it.Done {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		binary.BigEndian.PutUint64(buf[:], uint64(len(it.Text)))
		h.Write(buf[:])
		h.Write([]byte(it.Text))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:SnapshotLen/2])
}
