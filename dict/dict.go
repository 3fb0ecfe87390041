package dict

import (
	"github.com/ehrlich-b/reactorkv/internal/logging"

	reactorkv "github.com/ehrlich-b/reactorkv"
)

// Dict is an in-memory associative map keyed by K with values of type V,
// supporting incremental rehashing and safe/unsafe iteration. There is no
// internal locking: it is meant to be driven from a single goroutine.
type Dict[K, V any] struct {
	t *Type[K, V]

	ht0, ht1    table[K, V]
	rehashIndex int64 // -1 when not rehashing

	iteratorCount int

	resizeEnabled           bool
	loadFactorHighWatermark int

	metrics  Metrics
	observer Observer
	logger   *logging.Logger
}

// New creates an empty Dict using t to manage key/value lifecycle. t.Hash
// must be non-nil. Buckets are not allocated until the first insert.
func New[K, V any](t *Type[K, V], opts ...Option[K, V]) *Dict[K, V] {
	if t == nil || t.Hash == nil {
		panic("dict.New: Type.Hash must be set")
	}
	cfg := defaultDictConfig[K, V]()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Dict[K, V]{
		t:                       t,
		rehashIndex:             -1,
		resizeEnabled:           cfg.ResizeEnabled,
		loadFactorHighWatermark: cfg.LoadFactorHighWatermark,
		observer:                cfg.observer,
		logger:                  cfg.logger,
	}
}

// Metrics returns the dict's live metrics counters.
func (d *Dict[K, V]) Metrics() *Metrics { return &d.metrics }

// Size returns the number of live entries across both tables.
func (d *Dict[K, V]) Size() int {
	return d.ht0.used + d.ht1.used
}

// isRehashing reports whether an incremental rehash is in progress.
func (d *Dict[K, V]) isRehashing() bool {
	return d.rehashIndex != -1
}

// rehashStep performs one incremental rehash step if conditions allow:
// a rehash must be in progress and no safe iterator may be pinning the
// structure. It is a no-op otherwise. Call sites are every mutating
// operation and every lookup, per the incremental rehash hook.
func (d *Dict[K, V]) rehashStep() {
	if !d.isRehashing() || d.iteratorCount > 0 {
		return
	}
	d.Rehash(1)
}

// Stats is a snapshot of table shape, useful for external callers (e.g. a
// demo status line) without reaching into Dict internals.
type Stats struct {
	HT0Size       uint64
	HT0Used       int
	HT1Size       uint64
	HT1Used       int
	RehashIndex   int64
	LoadFactor    float64
}

// Stats returns a snapshot of the dict's current table shape.
func (d *Dict[K, V]) Stats() Stats {
	lf := 0.0
	if d.ht0.size > 0 {
		lf = float64(d.ht0.used) / float64(d.ht0.size)
	}
	return Stats{
		HT0Size:     d.ht0.size,
		HT0Used:     d.ht0.used,
		HT1Size:     d.ht1.size,
		HT1Used:     d.ht1.used,
		RehashIndex: d.rehashIndex,
		LoadFactor:  lf,
	}
}

// SetResizeEnabled toggles the per-Dict policy controlling whether growth
// may trigger opportunistically at load factor 1, replacing the original
// design's hidden process-global toggle.
func (d *Dict[K, V]) SetResizeEnabled(enabled bool) {
	d.resizeEnabled = enabled
}

// ensureInitialTable lazily allocates ht0 to initialSize on first use.
func (d *Dict[K, V]) ensureInitialTable() {
	if d.ht0.size == 0 {
		d.ht0.allocate(initialSize)
	}
}

// findInTable searches one table for key and returns its entry, or nil.
// It does not report the predecessor in the chain; unlinking goes through
// unlinkFromTable instead.
func (d *Dict[K, V]) findInTable(t *table[K, V], hash uint64, key K) *Entry[K, V] {
	if t.size == 0 {
		return nil
	}
	idx := t.bucketIndex(hash)
	for e := t.buckets[idx]; e != nil; e = e.next {
		if d.t.keyEqual(e.key, key) {
			return e
		}
	}
	return nil
}

// Find looks up key, performing one incremental rehash step first. It
// searches ht0 then, if rehashing, ht1.
func (d *Dict[K, V]) Find(key K) (*Entry[K, V], bool) {
	d.rehashStep()
	d.metrics.Lookups.Add(1)

	if d.ht0.size == 0 {
		return nil, false
	}
	hash := d.t.hash(key)
	if e := d.findInTable(&d.ht0, hash, key); e != nil {
		return e, true
	}
	if d.isRehashing() {
		if e := d.findInTable(&d.ht1, hash, key); e != nil {
			return e, true
		}
	}
	return nil, false
}

// FetchValue is a convenience wrapper over Find returning the stored
// value.
func (d *Dict[K, V]) FetchValue(key K) (V, bool) {
	e, ok := d.Find(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// targetTable returns the table new entries are linked into: ht1 while
// rehashing, ht0 otherwise.
func (d *Dict[K, V]) targetTable() *table[K, V] {
	if d.isRehashing() {
		return &d.ht1
	}
	return &d.ht0
}

// AddRaw allocates and links a new entry for key if absent, returning it
// with the key installed but the caller responsible for calling SetValue.
// If key is already present, AddRaw returns the existing entry and false.
func (d *Dict[K, V]) AddRaw(key K) (*Entry[K, V], bool) {
	d.rehashStep()

	if existing, ok := d.Find(key); ok {
		return existing, false
	}

	d.ensureInitialTable()
	d.maybeResizeBeforeInsert()

	t := d.targetTable()
	hash := d.t.hash(key)
	idx := t.bucketIndex(hash)

	e := &Entry[K, V]{key: d.t.keyDup(key)}
	e.next = t.buckets[idx]
	t.buckets[idx] = e
	t.used++

	d.metrics.Inserts.Add(1)
	return e, true
}

// Add inserts key/value, failing with ErrCodeDuplicateKey if key is
// already present.
func (d *Dict[K, V]) Add(key K, value V) error {
	e, inserted := d.AddRaw(key)
	if !inserted {
		return reactorkv.NewError("dict.Add", reactorkv.ErrCodeDuplicateKey, "key already present")
	}
	e.SetValue(d.t.valueDup(value))
	return nil
}

// Replace inserts key/value if absent, or updates the existing entry's
// value in place. The old value is destroyed only after the new value is
// installed, so a value that references its own predecessor (e.g. to
// decrement a shared refcount) observes a well-formed dict throughout.
// Replace reports true if a new entry was inserted, false if an existing
// one was updated.
func (d *Dict[K, V]) Replace(key K, value V) bool {
	e, inserted := d.AddRaw(key)
	newValue := d.t.valueDup(value)
	if inserted {
		e.SetValue(newValue)
		return true
	}
	old := e.value
	e.SetValue(newValue)
	d.t.destroyValue(old)
	return false
}

// unlinkFromTable removes and returns the entry for key from t's chain
// without destroying it.
func unlinkFromTable[K, V any](t *table[K, V], idx uint64, keyEqual func(a, b K) bool, key K) *Entry[K, V] {
	var prev *Entry[K, V]
	for e := t.buckets[idx]; e != nil; e = e.next {
		if keyEqual(e.key, key) {
			if prev == nil {
				t.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			e.next = nil
			t.used--
			return e
		}
		prev = e
	}
	return nil
}

// Unlink detaches key's entry from its chain without destroying it,
// returning it so the caller may inspect it before FreeUnlinked releases
// the key/value resources.
func (d *Dict[K, V]) Unlink(key K) *Entry[K, V] {
	d.rehashStep()

	if d.ht0.size == 0 {
		return nil
	}
	hash := d.t.hash(key)

	if idx := d.ht0.bucketIndex(hash); d.ht0.size > 0 {
		if e := unlinkFromTable(&d.ht0, idx, d.t.keyEqual, key); e != nil {
			d.metrics.Deletes.Add(1)
			return e
		}
	}
	if d.isRehashing() {
		idx := d.ht1.bucketIndex(hash)
		if e := unlinkFromTable(&d.ht1, idx, d.t.keyEqual, key); e != nil {
			d.metrics.Deletes.Add(1)
			return e
		}
	}
	return nil
}

// FreeUnlinked destroys an entry previously detached with Unlink, running
// the key/value destructors.
func (d *Dict[K, V]) FreeUnlinked(e *Entry[K, V]) {
	if e == nil {
		return
	}
	d.t.destroyKey(e.key)
	d.t.destroyValue(e.value)
}

// Delete removes key in one step, destroying its entry immediately. It
// reports whether the key was present.
func (d *Dict[K, V]) Delete(key K) bool {
	e := d.Unlink(key)
	if e == nil {
		return false
	}
	d.FreeUnlinked(e)
	return true
}
