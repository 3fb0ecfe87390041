package dict

import (
	"math/rand"
)

// GetRandomKey returns a uniformly-by-bucket sampled key: a bucket is
// chosen uniformly at random and its chain head returned, so only chain
// heads are ever returned and keys further down a chain are never picked.
// GetFairRandomKey can return any entry.
func (d *Dict[K, V]) GetRandomKey() (K, bool) {
	var zero K
	if d.Size() == 0 {
		return zero, false
	}

	t, idx := d.randomNonEmptyBucket()
	if t == nil {
		return zero, false
	}
	return t.buckets[idx].key, true
}

// GetFairRandomKey returns a key sampled approximately uniformly over live
// entries: a non-empty bucket is chosen, then a uniformly random position
// within its chain, so every entry can be returned. The sampling is exactly
// uniform only when all non-empty chains have the same length; entries in
// shorter chains are more likely than entries in longer ones.
func (d *Dict[K, V]) GetFairRandomKey() (K, bool) {
	var zero K
	if d.Size() == 0 {
		return zero, false
	}

	t, idx := d.randomNonEmptyBucket()
	if t == nil {
		return zero, false
	}

	length := 0
	for e := t.buckets[idx]; e != nil; e = e.next {
		length++
	}
	pick := rand.Intn(length)
	e := t.buckets[idx]
	for i := 0; i < pick; i++ {
		e = e.next
	}
	return e.key, true
}

// randomNonEmptyBucket picks a uniformly random non-empty bucket across
// whichever tables currently hold live entries.
func (d *Dict[K, V]) randomNonEmptyBucket() (*table[K, V], uint64) {
	candidates := make([]*table[K, V], 0, 2)
	if d.ht0.used > 0 {
		candidates = append(candidates, &d.ht0)
	}
	if d.isRehashing() && d.ht1.used > 0 {
		candidates = append(candidates, &d.ht1)
	}
	if len(candidates) == 0 {
		return nil, 0
	}

	for {
		t := candidates[rand.Intn(len(candidates))]
		if t.size == 0 {
			continue
		}
		idx := uint64(rand.Int63n(int64(t.size)))
		if t.buckets[idx] != nil {
			return t, idx
		}
	}
}

// GetSomeKeys returns up to count keys sampled without any uniformity
// guarantee, by walking a random starting
// bucket and collecting entries as it advances - intended for lightweight
// "give me a sample" callers such as active-expire cycles, not for
// anything requiring statistical rigor.
func (d *Dict[K, V]) GetSomeKeys(count int) []K {
	result := make([]K, 0, count)
	if count <= 0 || d.Size() == 0 {
		return result
	}

	t := &d.ht0
	if t.size == 0 {
		return result
	}
	start := uint64(rand.Int63n(int64(t.size)))

	for i := uint64(0); i < t.size && len(result) < count; i++ {
		idx := (start + i) & t.sizeMask
		for e := t.buckets[idx]; e != nil && len(result) < count; e = e.next {
			result = append(result, e.key)
		}
	}

	if d.isRehashing() && len(result) < count && d.ht1.size > 0 {
		start1 := uint64(rand.Int63n(int64(d.ht1.size)))
		for i := uint64(0); i < d.ht1.size && len(result) < count; i++ {
			idx := (start1 + i) & d.ht1.sizeMask
			for e := d.ht1.buckets[idx]; e != nil && len(result) < count; e = e.next {
				result = append(result, e.key)
			}
		}
	}

	return result
}
