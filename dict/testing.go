package dict

import "hash/fnv"

// StringType is a ready-made Type[string, V] for tests and demos keyed by
// strings, exported the way the teacher's MockBackend is exported for
// consumers of the module rather than kept test-only.
func StringType[V any]() *Type[string, V] {
	return &Type[string, V]{
		Hash: func(key string) uint64 {
			h := fnv.New64a()
			h.Write([]byte(key))
			return h.Sum64()
		},
		KeyEqual: func(a, b string) bool { return a == b },
	}
}

// IntType is a ready-made Type[int, V] for tests and demos keyed by plain
// integers.
func IntType[V any]() *Type[int, V] {
	return &Type[int, V]{
		Hash: func(key int) uint64 {
			h := fnv.New64a()
			var buf [8]byte
			u := uint64(key)
			for i := 0; i < 8; i++ {
				buf[i] = byte(u >> (8 * i))
			}
			h.Write(buf[:])
			return h.Sum64()
		},
		KeyEqual: func(a, b int) bool { return a == b },
	}
}
