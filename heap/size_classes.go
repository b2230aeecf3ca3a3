package heap

import "math"

// SizeClassConfig defines the free-list segregation strategy. Different
// configurations trade heap count against internal fragmentation.
type SizeClassConfig struct {
	// Name for this configuration (for benchmarking).
	Name string

	// Small chunk settings (linear increments).
	SmallMin       uintptr // Minimum chunk size (the minimum legal chunk)
	SmallMax       uintptr // Max for linear increments
	SmallIncrement uintptr // Increment for small classes

	// Medium chunk settings (logarithmic growth).
	MediumMax    uintptr // Cutoff before the large list
	GrowthFactor float64 // Exponential growth factor
}

// Predefined configurations.
var (
	// ConfigFineGrained: many small buckets, good for varied workloads.
	ConfigFineGrained = SizeClassConfig{
		Name:           "FineGrained",
		SmallMin:       32,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      64 << 10,
		GrowthFactor:   1.25,
	}

	// ConfigBalanced: good balance between heap count and granularity.
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       32,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      64 << 10,
		GrowthFactor:   1.5,
	}

	// ConfigCoarse: fewer buckets, faster operations, more internal
	// fragmentation.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       32,
		SmallMax:       512,
		SmallIncrement: 64,
		MediumMax:      64 << 10,
		GrowthFactor:   2.0,
	}

	// DefaultConfig is used when none is specified.
	DefaultConfig = ConfigBalanced
)

// sizeClassTable holds the computed size class boundaries.
type sizeClassTable struct {
	config     SizeClassConfig
	boundaries []uintptr // Upper bound for each size class
	numClasses int
}

// newSizeClassTable computes size class boundaries from config.
func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	table := &sizeClassTable{
		config:     config,
		boundaries: make([]uintptr, 0, 64),
	}

	// Phase 1: small chunks (linear increments).
	for size := config.SmallMin; size < config.SmallMax; size += config.SmallIncrement {
		table.boundaries = append(table.boundaries, size+config.SmallIncrement-1)
	}

	// Phase 2: medium chunks (logarithmic growth).
	if config.SmallMax < config.MediumMax {
		size := config.SmallMax
		for size < config.MediumMax {
			nextSize := uintptr(math.Ceil(float64(size) * config.GrowthFactor))
			if nextSize <= size {
				nextSize = size + 1 // Ensure progress
			}
			table.boundaries = append(table.boundaries, nextSize-1)
			size = nextSize
		}
	}

	table.numClasses = len(table.boundaries)
	return table
}

// getSizeClass returns the size class index for a chunk size.
// Returns table.numClasses for sizes >= MediumMax (use the large list).
func (t *sizeClassTable) getSizeClass(size uintptr) int {
	lo, hi := 0, t.numClasses-1

	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.boundaries[mid] {
			if mid == 0 || size > t.boundaries[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}

	return t.numClasses
}

// NumClasses returns the number of size classes (excluding the large list).
func (t *sizeClassTable) NumClasses() int {
	return t.numClasses
}
