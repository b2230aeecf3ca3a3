package heap

import "testing"

func TestSizeClassTable_BoundariesAreMonotonic(t *testing.T) {
	for _, cfg := range []SizeClassConfig{ConfigFineGrained, ConfigBalanced, ConfigCoarse} {
		t.Run(cfg.Name, func(t *testing.T) {
			table := newSizeClassTable(cfg)
			if table.NumClasses() == 0 {
				t.Fatal("no size classes computed")
			}
			for i := 1; i < len(table.boundaries); i++ {
				if table.boundaries[i] <= table.boundaries[i-1] {
					t.Fatalf("boundary %d (%d) <= boundary %d (%d)",
						i, table.boundaries[i], i-1, table.boundaries[i-1])
				}
			}
		})
	}
}

func TestSizeClassTable_LookupMatchesBoundaries(t *testing.T) {
	table := newSizeClassTable(ConfigBalanced)

	for _, size := range []uintptr{32, 33, 48, 100, 512, 1000, 4096, 60 << 10} {
		sc := table.getSizeClass(size)
		if sc >= table.NumClasses() {
			t.Fatalf("size %d landed in the large list", size)
		}
		if size > table.boundaries[sc] {
			t.Fatalf("size %d exceeds its class %d boundary %d", size, sc, table.boundaries[sc])
		}
		if sc > 0 && size <= table.boundaries[sc-1] {
			t.Fatalf("size %d also fits the previous class %d", size, sc-1)
		}
	}
}

func TestSizeClassTable_LargeSizesOverflowToLargeList(t *testing.T) {
	table := newSizeClassTable(ConfigBalanced)

	last := table.boundaries[table.NumClasses()-1]
	for _, size := range []uintptr{last + 1, 1 << 20, 256 << 20} {
		if sc := table.getSizeClass(size); sc != table.NumClasses() {
			t.Fatalf("size %d got class %d, want the large list (%d)", size, sc, table.NumClasses())
		}
	}
}

func TestSizeClassTable_CoarseHasFewerClasses(t *testing.T) {
	fine := newTestSizeClassCount(ConfigFineGrained)
	coarse := newTestSizeClassCount(ConfigCoarse)
	if coarse >= fine {
		t.Fatalf("coarse config has %d classes, fine-grained has %d", coarse, fine)
	}
}

func newTestSizeClassCount(cfg SizeClassConfig) int {
	return newSizeClassTable(cfg).NumClasses()
}
