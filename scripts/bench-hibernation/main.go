// bench-hibernation measures heap memory around Hibernate and Boot while a
// tree grows in chunks.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --entries 2000000 --chunks 4 \
//	  --profile-dir docs/profiles/hibernation
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/Sumatoshi-tech/ordmap/pkg/rbtree"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
}

func main() {
	entries := flag.Int("entries", 1_000_000, "Total entries inserted")
	chunks := flag.Int("chunks", 4, "Number of insert chunks, each followed by hibernate and boot")
	removeEvery := flag.Int("remove-every", 3, "Remove every Nth inserted key before hibernating (0 = never)")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (optional)")
	seed := flag.Uint64("seed", 1, "Random seed")

	flag.Parse()

	if *entries <= 0 || *chunks <= 0 {
		log.Fatal("--entries and --chunks must be positive")
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	tree := rbtree.New[int, int]()
	tree.Allocator().HibernationThreshold = 0

	var snapshots []heapSnapshot

	snapshot := func(label string) {
		runtime.GC()
		runtime.GC()

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		snapshots = append(snapshots, heapSnapshot{label: label, heapInUse: mem.HeapInuse, heapSys: mem.HeapSys})
		log.Printf("  [heap] %-36s inuse=%7.1f MB  sys=%7.1f MB", label, float64(mem.HeapInuse)/1e6, float64(mem.HeapSys)/1e6)

		if *profileDir != "" {
			writeHeapProfile(filepath.Join(*profileDir, label+".prof"))
		}
	}

	snapshot("empty")

	perChunk := max(*entries / *chunks, 1)

	for chunk := range *chunks {
		for idx := range perChunk {
			key := rng.Int()
			if tree.Insert(key, idx) != nil {
				continue
			}

			if *removeEvery > 0 && idx%*removeEvery == 0 {
				tree.Remove(key)
			}
		}

		snapshot(fmt.Sprintf("chunk_%d_live", chunk))

		start := time.Now()
		if err := tree.Hibernate(); err != nil {
			log.Fatalf("hibernate: %v", err)
		}

		log.Printf("chunk %d: hibernated %d slots in %s", chunk, tree.Allocator().Size(), time.Since(start))
		snapshot(fmt.Sprintf("chunk_%d_hibernated", chunk))

		start = time.Now()
		if err := tree.Boot(); err != nil {
			log.Fatalf("boot: %v", err)
		}

		log.Printf("chunk %d: booted in %s", chunk, time.Since(start))

		if err := tree.Verify(); err != nil {
			log.Fatalf("verify after boot: %v", err)
		}
	}

	fmt.Printf("\n%-36s %10s %10s\n", "Phase", "InUse(MB)", "Sys(MB)")

	for _, snap := range snapshots {
		fmt.Printf("%-36s %10.1f %10.1f\n", snap.label, float64(snap.heapInUse)/1e6, float64(snap.heapSys)/1e6)
	}

	fmt.Printf("\nentries=%d height=%d slots=%d\n", tree.Len(), tree.Height(), tree.Allocator().Size())
}

func writeHeapProfile(path string) {
	file, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer file.Close()

	if err := pprof.WriteHeapProfile(file); err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}
