package sync

import (
	"encoding/binary"
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring consistently maps keys onto stripe indices [0, stripes). Each stripe
// owns replicationFactor points on a murmur3 hash ring.
type ring struct {
	points *treemap.Map

	// first is the stripe at the smallest point, where lookups wrap around.
	first int
}

func newRing(stripes int, replicationFactor uint) *ring {
	points := treemap.NewWith(utils.Int64Comparator)

	point := make([]byte, 12)
	for stripe := 0; stripe < stripes; stripe++ {
		seed, _ := murmur3.Sum128([]byte(fmt.Sprintf("lock%d", stripe)))
		binary.LittleEndian.PutUint64(point, seed)

		for i := uint32(0); i < uint32(replicationFactor); i++ {
			binary.LittleEndian.PutUint32(point[8:], i)
			hash, _ := murmur3.Sum128(point)
			points.Put(int64(hash), stripe)
		}
	}

	r := &ring{points: points}
	if _, first := points.Min(); first != nil {
		r.first = first.(int)
	}
	return r
}

// stripe returns the index owning the first point at or after the key's hash.
func (r *ring) stripe(key []byte) int {
	hash, _ := murmur3.Sum128(key)
	if _, stripe := r.points.Ceiling(int64(hash)); stripe != nil {
		return stripe.(int)
	}
	return r.first
}
