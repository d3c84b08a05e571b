// Bench is a benchmarking tool for measuring PTHash build performance,
// query throughput, and space usage.
//
// Usage:
//
//	go run ./cmd/bench -keys 10000000 -encoder dictionary
//
// Flags:
//
//	-keys        Number of keys to index (default: 10,000,000)
//	-c           Bucket density parameter (default: 4.5)
//	-alpha       Table load factor (default: 0.98)
//	-workers     Number of parallel workers (default: 1)
//	-partitions  Number of partitions, 1 for single-part (default: 1)
//	-encoder     Pilot encoder: dictionary, compact, or ef (default: dictionary)
//	-hasher      Key hasher: xxh128 or murmur128 (default: xxh128)
//	-minimal     Build a minimal function (default: true)
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"runtime"
	"runtime/metrics"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/tamirms/pthash"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024 // Convert KB to bytes on Linux
	}
	return maxRSS
}

func main() {
	keysFlag := flag.Int("keys", 10_000_000, "number of keys")
	cFlag := flag.Float64("c", 4.5, "bucket density parameter")
	alphaFlag := flag.Float64("alpha", 0.98, "table load factor")
	workersFlag := flag.Int("workers", 1, "number of parallel workers for building")
	partitionsFlag := flag.Int("partitions", 1, "number of partitions (1 = single-part)")
	encoderFlag := flag.String("encoder", "dictionary", "pilot encoder: dictionary, compact, or ef")
	hasherFlag := flag.String("hasher", "xxh128", "key hasher: xxh128 or murmur128")
	minimalFlag := flag.Bool("minimal", true, "build a minimal function")
	seedFlag := flag.Uint64("seed", 0, "pin the build seed (0 = auto)")
	cpuprofile := flag.String("cpuprofile", "", "write cpu profile to file (build phase only)")
	memprofile := flag.String("memprofile", "", "write memory profile to file (build phase only)")
	flag.Parse()

	numKeys := *keysFlag

	fmt.Println("Generating keys...")
	keys := make([][32]byte, numKeys)
	for i := range keys {
		_, _ = rand.Read(keys[i][:]) // crypto/rand.Read error is fatal system issue; ignore for benchmark
	}

	fmt.Println("Hashing keys...")
	hashStart := time.Now()
	hashSeed := uint32(0x1234)
	for i := range keys {
		murmur3.Sum128WithSeed(keys[i][:], hashSeed)
	}
	hashDuration := time.Since(hashStart)

	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	var baseline runtime.MemStats
	runtime.ReadMemStats(&baseline)
	baselineRSS := getMaxRSS()

	// 10ms sampling for peak memory (both heap and RSS).
	// Uses runtime/metrics instead of ReadMemStats to avoid stop-the-world pauses
	// that cause ~50ms overhead and distort CPU profiles.
	var peakAlloc atomic.Uint64
	var peakRSS atomic.Uint64
	peakAlloc.Store(baseline.Alloc)
	peakRSS.Store(baselineRSS)
	done := make(chan struct{})
	go func() {
		samples := []metrics.Sample{
			{Name: "/memory/classes/heap/objects:bytes"},
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				metrics.Read(samples)
				heapBytes := samples[0].Value.Uint64()
				for {
					old := peakAlloc.Load()
					if heapBytes <= old || peakAlloc.CompareAndSwap(old, heapBytes) {
						break
					}
				}
				rss := getMaxRSS()
				for {
					old := peakRSS.Load()
					if rss <= old || peakRSS.CompareAndSwap(old, rss) {
						break
					}
				}
			}
		}
	}()

	var encoder pthash.Encoder
	switch *encoderFlag {
	case "dictionary":
		encoder = pthash.EncoderDictionary
	case "compact":
		encoder = pthash.EncoderCompactBlocks
	case "ef":
		encoder = pthash.EncoderEliasFano
	default:
		fmt.Printf("Unknown encoder: %s (use 'dictionary', 'compact', or 'ef')\n", *encoderFlag)
		return
	}

	var hasher pthash.HasherID
	switch *hasherFlag {
	case "xxh128":
		hasher = pthash.HasherXXH128
	case "murmur128":
		hasher = pthash.HasherMurmur128
	default:
		fmt.Printf("Unknown hasher: %s (use 'xxh128' or 'murmur128')\n", *hasherFlag)
		return
	}

	opts := []pthash.BuildOption{
		pthash.WithC(*cFlag),
		pthash.WithAlpha(*alphaFlag),
		pthash.WithWorkers(*workersFlag),
		pthash.WithEncoder(encoder),
		pthash.WithHasher(hasher),
	}
	if !*minimalFlag {
		opts = append(opts, pthash.NonMinimal())
	}
	if *seedFlag != 0 {
		opts = append(opts, pthash.WithSeed(*seedFlag))
	}

	keySlices := make([][]byte, numKeys)
	for i := range keys {
		keySlices[i] = keys[i][:]
	}
	keySource := pthash.SliceKeys(keySlices)

	fmt.Println("Building function...")

	// Start CPU profile for build phase
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Printf("could not create CPU profile: %v\n", err)
			return
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("could not start CPU profile: %v\n", err)
			return
		}
	}

	buildStart := time.Now()

	var fn pthash.Function
	var err error
	if *partitionsFlag > 1 {
		opts = append(opts, pthash.WithPartitions(*partitionsFlag))
		fn, err = pthash.BuildPartitioned(context.Background(), keySource, opts...)
	} else {
		fn, err = pthash.Build(context.Background(), keySource, opts...)
	}

	buildDuration := time.Since(buildStart)

	// Stop CPU profile after build phase
	if *cpuprofile != "" {
		pprof.StopCPUProfile()
	}

	// Write memory profile after build phase
	if *memprofile != "" {
		f, perr := os.Create(*memprofile)
		if perr != nil {
			fmt.Printf("could not create memory profile: %v\n", perr)
		} else {
			runtime.GC() // Get up-to-date statistics
			if perr := pprof.WriteHeapProfile(f); perr != nil {
				fmt.Printf("could not write memory profile: %v\n", perr)
			}
			_ = f.Close()
		}
	}

	close(done)

	// Final memory samples
	var final runtime.MemStats
	runtime.ReadMemStats(&final)
	if final.Alloc > peakAlloc.Load() {
		peakAlloc.Store(final.Alloc)
	}
	finalRSS := getMaxRSS()
	if finalRSS > peakRSS.Load() {
		peakRSS.Store(finalRSS)
	}

	peakHeapMem := peakAlloc.Load() - baseline.Alloc
	peakRSSMem := peakRSS.Load() - baselineRSS

	if err != nil {
		fmt.Printf("Build failed: %v\n", err)
		return
	}

	bitsPerKey := float64(fn.NumBits()) / float64(fn.NumKeys())

	// Randomize query order so access patterns do not depend on insertion order
	queryOrder := mrand.Perm(numKeys)

	fmt.Println("Warming up queries...")
	for i := 0; i < 10000; i++ {
		_ = fn.Lookup(keys[queryOrder[i%numKeys]][:])
	}

	fmt.Println("Benchmarking queries...")
	numQueries := 100000
	queryStart := time.Now()
	for i := 0; i < numQueries; i++ {
		_ = fn.Lookup(keys[queryOrder[i%numKeys]][:])
	}
	queryDuration := time.Since(queryStart)
	avgLatency := float64(queryDuration.Nanoseconds()) / float64(numQueries)

	kindStr := "single"
	if *partitionsFlag > 1 {
		kindStr = fmt.Sprintf("%d parts", *partitionsFlag)
	}

	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════╗\n")
	fmt.Printf("║ Kind: %-13s ║ Enc: %-9s ║\n", kindStr, *encoderFlag)
	fmt.Printf("╠═════════════════════╬════════════════╣\n")
	fmt.Printf("║ Keys                ║ %14d ║\n", numKeys)
	fmt.Printf("║ Table size          ║ %14d ║\n", fn.TableSize())
	fmt.Printf("║ Seed                ║ %14x ║\n", fn.Seed())
	fmt.Printf("║ Bits per key        ║ %10.3f b/k ║\n", bitsPerKey)
	fmt.Printf("║ Query latency       ║ %11.1f ns ║\n", avgLatency)
	fmt.Printf("║ Build time          ║ %10.2f sec ║\n", buildDuration.Seconds())
	fmt.Printf("║ Build throughput    ║ %8.2f M/sec ║\n", float64(numKeys)/buildDuration.Seconds()/1_000_000)
	fmt.Printf("║ Hash time           ║ %10.2f sec ║\n", hashDuration.Seconds())
	fmt.Printf("║ Peak heap memory    ║ %11.1f MB ║\n", float64(peakHeapMem)/1_000_000)
	fmt.Printf("║ Peak RSS memory     ║ %11.1f MB ║\n", float64(peakRSSMem)/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════╝\n")
}
