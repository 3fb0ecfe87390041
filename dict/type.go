package dict

// Type is the vtable a Dict requires to manage the lifecycle of its keys
// and values. Hash is mandatory; every other field is optional and
// degrades to an identity/no-op default when nil, matching the contract
// a caller of a Redis-style dict type vtable expects.
type Type[K, V any] struct {
	// Hash returns a 64-bit hash of key. Required.
	Hash func(key K) uint64

	// KeyDup, if set, is called to produce the dictionary's private copy
	// of a key on insert. If nil, the key is stored as given.
	KeyDup func(key K) K

	// ValueDup, if set, is called to produce the dictionary's private
	// copy of a value on insert/replace. If nil, the value is stored as
	// given.
	ValueDup func(value V) V

	// KeyEqual compares two keys for equality. If nil, keys are compared
	// with Go's == operator (valid only for comparable K in practice; the
	// caller is responsible for supplying this when K is not safely
	// comparable with ==).
	KeyEqual func(a, b K) bool

	// KeyDestructor, if set, runs when an entry holding key is freed.
	KeyDestructor func(key K)

	// ValueDestructor, if set, runs when an entry's value is replaced or
	// freed.
	ValueDestructor func(value V)
}

func (t *Type[K, V]) hash(key K) uint64 {
	return t.Hash(key)
}

func (t *Type[K, V]) keyDup(key K) K {
	if t.KeyDup != nil {
		return t.KeyDup(key)
	}
	return key
}

func (t *Type[K, V]) valueDup(value V) V {
	if t.ValueDup != nil {
		return t.ValueDup(value)
	}
	return value
}

func (t *Type[K, V]) keyEqual(a, b K) bool {
	if t.KeyEqual != nil {
		return t.KeyEqual(a, b)
	}
	return any(a) == any(b)
}

func (t *Type[K, V]) destroyKey(key K) {
	if t.KeyDestructor != nil {
		t.KeyDestructor(key)
	}
}

func (t *Type[K, V]) destroyValue(value V) {
	if t.ValueDestructor != nil {
		t.ValueDestructor(value)
	}
}
