package dict

import (
	"fmt"
	"testing"
)

func TestExpandThenFullRehashEmptiesHT1(t *testing.T) {
	d := New[string, int](StringType[int]())
	for i := 0; i < 100; i++ {
		d.Add(fmt.Sprintf("k%d", i), i)
	}

	if err := d.Expand(256); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !d.isRehashing() {
		t.Fatal("Expand should start a rehash")
	}

	for d.Rehash(1000) {
	}

	if d.isRehashing() {
		t.Fatal("dict should no longer be rehashing after driving Rehash to completion")
	}
	if d.ht1.size != 0 {
		t.Fatalf("ht1 size = %d, want 0 after rehash completes", d.ht1.size)
	}
	for i := 0; i < 100; i++ {
		if _, ok := d.Find(fmt.Sprintf("k%d", i)); !ok {
			t.Fatalf("k%d not reachable via Find after full rehash", i)
		}
	}
}

func TestFindDuringInProgressRehashSeesAllKeys(t *testing.T) {
	d := New[string, int](StringType[int]())
	// The initial table has only 4 buckets, so 100 inserts trigger growth.
	for i := 0; i < 100; i++ {
		d.Add(fmt.Sprintf("k%d", i), i)
		if !d.isRehashing() {
			continue
		}
		// While a rehash is in progress, every previously inserted key
		// must remain reachable.
		for j := 0; j <= i; j++ {
			if _, ok := d.Find(fmt.Sprintf("k%d", j)); !ok {
				t.Fatalf("k%d not found while rehash in progress at insert %d", j, i)
			}
		}
	}
}

func TestRehashStepSkipsEmptyBucketsBoundedly(t *testing.T) {
	d := New[string, int](StringType[int]())
	d.Add("only", 1)
	// Expand to a much larger table so almost all buckets in ht0 are
	// empty; Rehash(1) must still make progress without hanging.
	if err := d.Expand(1024); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	more := d.Rehash(1)
	if more {
		// one entry migrated in a single step is plenty to finish here
		more = d.Rehash(1)
	}
	if _, ok := d.Find("only"); !ok {
		t.Fatal("key should remain findable across rehash steps")
	}
	_ = more
}

func TestResizeTargetsLoadFactorOne(t *testing.T) {
	d := New[string, int](StringType[int]())
	for i := 0; i < 50; i++ {
		d.Add(fmt.Sprintf("k%d", i), i)
	}
	if err := d.Resize(); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	for d.Rehash(1000) {
	}
	stats := d.Stats()
	if stats.HT0Used > int(stats.HT0Size) {
		t.Fatalf("used %d exceeds size %d after Resize", stats.HT0Used, stats.HT0Size)
	}
}

func TestGrowthDisabledWhenResizeDisabledUntilWatermark(t *testing.T) {
	d := New[string, int](StringType[int](), WithResizeEnabled[string, int](false))
	for i := 0; i < 4; i++ {
		d.Add(fmt.Sprintf("k%d", i), i)
	}
	if d.isRehashing() {
		t.Fatal("resize disabled: reaching used==size should not trigger growth")
	}

	// Unconditional watermark (5x size) must still force growth even with
	// resizing disabled.
	for i := 4; i < 21; i++ {
		d.Add(fmt.Sprintf("k%d", i), i)
	}
	if !d.isRehashing() {
		t.Fatal("watermark of 5x size should force growth regardless of ResizeEnabled")
	}
}
