package dict

import (
	"testing"

	"github.com/stretchr/testify/require"

	reactorkv "github.com/ehrlich-b/reactorkv"
)

func TestAddAndFind(t *testing.T) {
	d := New[string, int](StringType[int]())

	if err := d.Add("a", 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	e, ok := d.Find("a")
	if !ok || e.Value() != 1 {
		t.Fatalf("Find(a) = %v, %v, want 1, true", e, ok)
	}
}

func TestAddDuplicateFails(t *testing.T) {
	d := New[string, int](StringType[int]())
	require.NoError(t, d.Add("a", 1))

	err := d.Add("a", 2)
	if !reactorkv.IsCode(err, reactorkv.ErrCodeDuplicateKey) {
		t.Fatalf("Add(duplicate) err = %v, want ErrCodeDuplicateKey", err)
	}
}

func TestReplaceInsertsOrUpdates(t *testing.T) {
	d := New[string, int](StringType[int]())

	inserted := d.Replace("a", 1)
	if !inserted {
		t.Fatal("Replace on absent key should report inserted=true")
	}

	inserted = d.Replace("a", 2)
	if inserted {
		t.Fatal("Replace on existing key should report inserted=false")
	}

	v, ok := d.FetchValue("a")
	if !ok || v != 2 {
		t.Fatalf("FetchValue(a) = %v, %v, want 2, true", v, ok)
	}
}

func TestReplaceDestroysOldValueAfterInstallingNew(t *testing.T) {
	var destroyedValue int
	ty := &Type[string, int]{
		Hash:            StringType[int]().Hash,
		KeyEqual:        StringType[int]().KeyEqual,
		ValueDestructor: func(v int) { destroyedValue = v },
	}
	d := New[string, int](ty)
	d.Replace("a", 1)
	d.Replace("a", 2)

	if destroyedValue != 1 {
		t.Fatalf("destroyed value = %d, want 1 (the old value)", destroyedValue)
	}
	v, _ := d.FetchValue("a")
	if v != 2 {
		t.Fatalf("current value = %d, want 2 (the new value, installed before destroy ran)", v)
	}
}

func TestDeleteAndUnlinkFreeUnlinked(t *testing.T) {
	d := New[string, int](StringType[int]())
	require.NoError(t, d.Add("a", 1))
	require.NoError(t, d.Add("b", 2))

	if !d.Delete("a") {
		t.Fatal("Delete(a) should report true")
	}
	if d.Delete("a") {
		t.Fatal("Delete(a) second time should report false")
	}

	e := d.Unlink("b")
	if e == nil || e.Key() != "b" {
		t.Fatalf("Unlink(b) = %v, want entry for b", e)
	}
	if _, ok := d.Find("b"); ok {
		t.Fatal("b should no longer be reachable via Find after Unlink")
	}
	d.FreeUnlinked(e)
}

func TestSizeTracksInsertsAndDeletes(t *testing.T) {
	d := New[string, int](StringType[int]())

	tests := []struct {
		name   string
		action func()
		want   int
	}{
		{"empty", func() {}, 0},
		{"add a", func() { d.Add("a", 1) }, 1},
		{"add b", func() { d.Add("b", 2) }, 2},
		{"delete a", func() { d.Delete("a") }, 1},
		{"delete missing", func() { d.Delete("zzz") }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.action()
			if got := d.Size(); got != tt.want {
				t.Fatalf("Size() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAddRawReturnsExistingOnDuplicate(t *testing.T) {
	d := New[string, int](StringType[int]())
	e1, inserted1 := d.AddRaw("a")
	e1.SetValue(1)
	if !inserted1 {
		t.Fatal("first AddRaw should report inserted=true")
	}

	e2, inserted2 := d.AddRaw("a")
	if inserted2 {
		t.Fatal("second AddRaw on same key should report inserted=false")
	}
	if e2 != e1 {
		t.Fatal("second AddRaw should return the existing entry")
	}
}

func TestTableSizesArePowersOfTwo(t *testing.T) {
	d := New[string, int](StringType[int]())
	for i := 0; i < 200; i++ {
		d.Add(keyFor(i), i)
	}
	stats := d.Stats()
	require.True(t, isPowerOfTwo(stats.HT0Size), "ht0 size %d must be a power of two", stats.HT0Size)
	if stats.HT1Size != 0 {
		require.True(t, isPowerOfTwo(stats.HT1Size), "ht1 size %d must be a power of two", stats.HT1Size)
	}
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

func keyFor(i int) string {
	return string(rune('a'+(i%26))) + string(rune('A'+(i/26%26)))
}
