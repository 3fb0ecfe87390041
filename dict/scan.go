package dict

// Scan walks the dictionary using a cursor the caller threads through
// repeated calls, starting at 0 and stopping once the returned cursor is
// 0 again. entryCB is invoked for every live entry visited; bucketCB, if
// non-nil, is invoked once per bucket visited before its entries. Every
// entry present for the whole scan is visited at least once; entries
// inserted or deleted mid-scan may or may not be visited; no entry
// present throughout is visited more than twice across a full pass.
//
// An intervening call that replaces the dictionary entirely (rather than
// mutating this one in place) invalidates any cursor obtained from it;
// that is a caller contract, not something Scan can detect at runtime.
func (d *Dict[K, V]) Scan(cursor uint64, entryCB func(*Entry[K, V]), bucketCB func(), userdata any) uint64 {
	if d.ht0.size == 0 {
		return 0
	}

	if !d.isRehashing() {
		mask := d.ht0.sizeMask
		idx := cursor & mask
		d.visitBucket(&d.ht0, idx, entryCB, bucketCB)
		return reverseBinaryIncrement(cursor, mask)
	}

	// Rehashing: ht1 is usually the larger table (growth) but Resize can
	// allocate it smaller than ht0 (shrink), so pick the smaller of the two
	// by size rather than assuming which field holds it. Iterate the small
	// table's bucket for the cursor, then every bucket of the large table
	// whose low bits (modulo the small table's mask) match it.
	t0, t1 := &d.ht0, &d.ht1
	if t0.sizeMask > t1.sizeMask {
		t0, t1 = t1, t0
	}
	smallMask := t0.sizeMask
	largeMask := t1.sizeMask

	idx := cursor & smallMask
	d.visitBucket(t0, idx, entryCB, bucketCB)

	m := idx
	for {
		d.visitBucket(t1, m, entryCB, bucketCB)
		m = nextMatchingBucket(m, smallMask, largeMask)
		if m == idx {
			break
		}
	}

	// Advance by the small table's mask: each call already visits every
	// large-table bucket matching idx, so the cursor only needs to walk a
	// small-table-length cycle to cover every bucket exactly once absent
	// concurrent mutation. Advancing by the large mask instead would make
	// the cursor revisit the same idx for largeSize/smallSize steps,
	// burning the "at most twice" allowance on a single rehash.
	return reverseBinaryIncrement(cursor, smallMask)
}

func (d *Dict[K, V]) visitBucket(t *table[K, V], idx uint64, entryCB func(*Entry[K, V]), bucketCB func()) {
	if idx >= t.size {
		return
	}
	if bucketCB != nil {
		bucketCB()
	}
	for e := t.buckets[idx]; e != nil; e = e.next {
		entryCB(e)
	}
}

// nextMatchingBucket enumerates, in ascending order with wraparound, the
// buckets of a larger table (mask largeMask) whose low bits agree with idx
// under smallMask - i.e. every bucket that would fold into idx if the
// larger table were shrunk back to the smaller table's size.
func nextMatchingBucket(idx, smallMask, largeMask uint64) uint64 {
	// The buckets sharing idx's low bits are idx, idx+smallMask+1,
	// idx+2*(smallMask+1), ... up to largeMask.
	step := smallMask + 1
	next := idx + step
	if next > largeMask {
		return idx & smallMask
	}
	return next
}

// reverseBinaryIncrement implements the classic rehashing-safe cursor
// advance: increment the cursor as if its bits were reversed, relative to
// mask, so that growing or shrinking the table between calls still visits
// every bucket that existed throughout the scan at least once.
func reverseBinaryIncrement(cursor, mask uint64) uint64 {
	cursor |= ^mask
	cursor = reverseBits64(cursor)
	cursor++
	cursor = reverseBits64(cursor)
	return cursor
}

func reverseBits64(v uint64) uint64 {
	var r uint64
	for i := 0; i < 64; i++ {
		r <<= 1
		r |= v & 1
		v >>= 1
	}
	return r
}
