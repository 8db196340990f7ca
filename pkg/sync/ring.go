package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring consistently hashes keys onto a fixed set of stripe indices.
type ring struct {
	points *treemap.Map

	// Min() on the treemap is O(log n), and is needed on every wrap around.
	first int
}

// newRing places every named entry on the ring replicas times. Points are
// derived from the entry name, so a ring built from the same names always
// routes a key to the same value.
func newRing(entries map[string]int, replicas uint) *ring {
	points := treemap.NewWith(utils.Int64Comparator)
	for name, value := range entries {
		seed, _ := murmur3.Sum128([]byte(name))

		var buf [12]byte
		binary.LittleEndian.PutUint64(buf[:8], seed)
		for j := 0; j < int(replicas); j++ {
			binary.LittleEndian.PutUint32(buf[8:], uint32(j))
			point, _ := murmur3.Sum128(buf[:])
			points.Put(int64(point), value)
		}
	}

	r := &ring{points: points}
	if _, first := points.Min(); first != nil {
		r.first = first.(int)
	}
	return r
}

// stripe returns the stripe index that owns key.
func (r *ring) stripe(key []byte) int {
	hash, _ := murmur3.Sum128(key)
	if _, owner := r.points.Ceiling(int64(hash)); owner != nil {
		return owner.(int)
	}
	return r.first
}
