package dict

import (
	"time"

	reactorkv "github.com/ehrlich-b/reactorkv"
)

// emptyVisitCapFactor bounds how many empty buckets Rehash will skip past
// per requested step before giving up early, avoiding an unbounded stall
// migrating a very sparse table.
const emptyVisitCapFactor = 10

// Expand allocates ht1 sized to the next power of two >= max(n, used) and
// begins an incremental rehash from bucket 0. It fails if a rehash is
// already in progress.
func (d *Dict[K, V]) Expand(n int) error {
	if d.isRehashing() {
		return reactorkv.NewError("dict.Expand", reactorkv.ErrCodeInvalidArgument, "rehash already in progress")
	}
	used := d.ht0.used
	if n < used {
		n = used
	}
	newSize := nextPowerOfTwo(uint64(n))
	if d.ht0.size == 0 {
		d.ht0.allocate(newSize)
		return nil
	}
	if newSize == d.ht0.size {
		return nil
	}

	oldSize := d.ht0.size
	d.ht1.allocate(newSize)
	d.rehashIndex = 0
	d.metrics.ResizeEvents.Add(1)
	d.observer.ObserveResize(oldSize, newSize)
	return nil
}

// Resize targets a load factor of 1: it expands (or shrinks) ht0 to the
// next power of two >= used, with a floor of initialSize.
func (d *Dict[K, V]) Resize() error {
	target := d.ht0.used
	if target < int(initialSize) {
		target = int(initialSize)
	}
	return d.Expand(target)
}

// maybeResizeBeforeInsert applies the growth policy before AddRaw links a
// new entry: growth triggers when used >= size and resizing is enabled,
// or unconditionally once used >= loadFactorHighWatermark * size.
func (d *Dict[K, V]) maybeResizeBeforeInsert() {
	if d.isRehashing() {
		return
	}
	size := d.ht0.size
	if size == 0 {
		return
	}
	used := uint64(d.ht0.used)

	watermark := d.loadFactorHighWatermark
	if watermark <= 0 {
		watermark = 5
	}

	if (used >= size && d.resizeEnabled) || used >= uint64(watermark)*size {
		d.Expand(int(used) + 1)
	}
}

// Rehash advances an in-progress rehash by migrating up to steps
// non-empty buckets from ht0 to ht1, skipping empty buckets up to an
// auxiliary cap of emptyVisitCapFactor*steps visits. It returns true if
// more work remains, false if rehashing has completed (ht1 has been
// swapped into ht0). Calling Rehash when no rehash is in progress is a
// no-op returning false.
func (d *Dict[K, V]) Rehash(steps int) bool {
	if !d.isRehashing() {
		return false
	}

	emptyVisits := emptyVisitCapFactor * steps
	moved := 0
	for steps > 0 && d.ht0.used != 0 {
		for d.ht0.buckets[int(d.rehashIndex)] == nil {
			d.rehashIndex++
			emptyVisits--
			if emptyVisits == 0 {
				d.observer.ObserveRehashStep(moved)
				d.metrics.RehashSteps.Add(uint64(moved))
				return true
			}
		}

		e := d.ht0.buckets[int(d.rehashIndex)]
		for e != nil {
			next := e.next
			hash := d.t.hash(e.key)
			idx := d.ht1.bucketIndex(hash)
			e.next = d.ht1.buckets[idx]
			d.ht1.buckets[idx] = e
			d.ht0.used--
			d.ht1.used++
			e = next
		}
		d.ht0.buckets[int(d.rehashIndex)] = nil
		d.rehashIndex++
		steps--
		moved++
	}

	d.observer.ObserveRehashStep(moved)
	d.metrics.RehashSteps.Add(uint64(moved))

	if d.ht0.used == 0 {
		d.ht0 = d.ht1
		d.ht1.reset()
		d.rehashIndex = -1
		return false
	}
	return true
}

// RehashMilliseconds calls Rehash(100) repeatedly until budget has
// elapsed or rehashing completes.
func (d *Dict[K, V]) RehashMilliseconds(budget time.Duration) {
	deadline := time.Now().Add(budget)
	for d.isRehashing() {
		if !d.Rehash(100) {
			return
		}
		if time.Now().After(deadline) {
			return
		}
	}
}
