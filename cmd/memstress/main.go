// Command memstress exercises the allocator under concurrent load and
// reports usage statistics.
//
// Each worker runs a random malloc/realloc/free loop against a shared
// heap; when all workers finish, the tool prints the mallinfo counters
// and optionally the malloc_info XML document.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/memkit/memkit/cmd/memstress/logger"
	"github.com/memkit/memkit/heap"
	"github.com/memkit/memkit/malloc"
)

func main() {
	var (
		workers = flag.Int("workers", 4, "concurrent workers")
		ops     = flag.Int("ops", 100000, "operations per worker")
		minSize = flag.Int("min", 8, "minimum allocation size in bytes")
		maxSize = flag.Int("max", 4096, "maximum allocation size in bytes")
		region  = flag.Int64("region", heap.DefaultMaxSize, "heap region size in bytes")
		purge   = flag.Bool("purge", true, "release unused pages when done")
		xml     = flag.Bool("xml", false, "print the malloc_info document")
		verbose = flag.Bool("v", false, "verbose logging")
		logFile = flag.String("log", "", "log to this file as JSON instead of stderr")
	)
	flag.Parse()

	if err := logger.Init(logger.Options{Verbose: *verbose, File: *logFile}); err != nil {
		fmt.Fprintln(os.Stderr, "memstress:", err)
		os.Exit(1)
	}

	if err := run(*workers, *ops, *minSize, *maxSize, *region, *purge, *xml); err != nil {
		logger.L.Error("stress run failed", "error", err)
		os.Exit(1)
	}
}

func run(workers, ops, minSize, maxSize int, region int64, purge, xml bool) error {
	if minSize <= 0 || maxSize < minSize {
		return fmt.Errorf("invalid size range [%d, %d]", minSize, maxSize)
	}

	h, err := heap.New(heap.Config{
		MaxSize:       uintptr(region),
		CanReturnNull: true,
	})
	if err != nil {
		return err
	}
	defer h.Close()

	a := malloc.New(h, malloc.Config{})
	logger.L.Info("starting stress run",
		"workers", workers, "ops", ops, "min", minSize, "max", maxSize)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			stress(a, w, ops, minSize, maxSize)
		}()
	}
	wg.Wait()

	if purge {
		a.Mallopt(malloc.MalloptPurge, 0)
	}

	report(a)
	if xml {
		if err := a.MallocInfo(0, os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

// stress runs one worker's random allocation loop. A small window of live
// blocks keeps the free lists churning.
func stress(a *malloc.Allocator, worker, ops, minSize, maxSize int) {
	rng := rand.New(rand.NewSource(int64(worker) + 1))
	live := make([][]byte, 0, 64)

	for op := 0; op < ops; op++ {
		switch {
		case len(live) == 0 || (len(live) < cap(live) && rng.Intn(2) == 0):
			size := uintptr(minSize + rng.Intn(maxSize-minSize+1))
			block, err := a.Malloc(size)
			if err != nil {
				logger.L.Debug("malloc failed", "worker", worker, "size", size, "error", err)
				continue
			}
			live = append(live, block)
		case rng.Intn(4) == 0:
			i := rng.Intn(len(live))
			size := uintptr(minSize + rng.Intn(maxSize-minSize+1))
			block, err := a.Realloc(live[i], size)
			if err != nil {
				logger.L.Debug("realloc failed", "worker", worker, "size", size, "error", err)
				continue
			}
			live[i] = block
		default:
			i := rng.Intn(len(live))
			a.Free(live[i])
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
	}

	for _, block := range live {
		a.Free(block)
	}
}

// report prints the mallinfo counters with readable digit grouping.
func report(a *malloc.Allocator) {
	info := a.Mallinfo()
	p := message.NewPrinter(language.English)
	p.Printf("mapped from OS:   %d bytes\n", info.Hblkhd)
	p.Printf("allocated (live): %d bytes\n", info.Uordblks)
	p.Printf("free lists:       %d bytes\n", info.Fordblks)
}
