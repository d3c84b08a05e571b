// bench_io measures the serialization path: encode, write, reopen, and
// query a saved function, comparing the reopened copy against the
// freshly built one.
//
// Usage:
//
//	go run ./cmd/bench_io -keys 1000000
//	go run ./cmd/bench_io -keys 10000000 -encoder ef -dir /mnt/fast
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/tamirms/pthash"
)

func main() {
	keysFlag := flag.Int("keys", 1_000_000, "number of keys")
	encoderFlag := flag.String("encoder", "dictionary", "pilot encoder: dictionary, compact, or ef")
	partitionsFlag := flag.Int("partitions", 1, "number of partitions (1 = single-part)")
	workersFlag := flag.Int("workers", 1, "number of parallel workers for building")
	dirFlag := flag.String("dir", "", "directory for the saved file (default: os.TempDir())")
	flag.Parse()

	numKeys := *keysFlag

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

	dir := *dirFlag
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("pthash-bench-%d.phf", os.Getpid()))
	defer func() { _ = os.Remove(path) }()

	fmt.Println("Generating keys...")
	keys := make([][]byte, numKeys)
	for i := range keys {
		keys[i] = make([]byte, 32)
		_, _ = rand.Read(keys[i])
	}

	opts := []pthash.BuildOption{
		pthash.WithEncoder(encoder),
		pthash.WithWorkers(*workersFlag),
	}

	fmt.Println("Building function...")
	buildStart := time.Now()
	var built pthash.Function
	var err error
	if *partitionsFlag > 1 {
		opts = append(opts, pthash.WithPartitions(*partitionsFlag))
		built, err = pthash.BuildPartitioned(context.Background(), pthash.SliceKeys(keys), opts...)
	} else {
		built, err = pthash.Build(context.Background(), pthash.SliceKeys(keys), opts...)
	}
	if err != nil {
		fmt.Printf("Build failed: %v\n", err)
		return
	}
	buildDur := time.Since(buildStart)

	writeStart := time.Now()
	if err := pthash.WriteFile(built, path); err != nil {
		fmt.Printf("WriteFile failed: %v\n", err)
		return
	}
	writeDur := time.Since(writeStart)

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Stat failed: %v\n", err)
		return
	}

	openStart := time.Now()
	loaded, err := pthash.Open(path)
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		return
	}
	openDur := time.Since(openStart)

	// Sanity: reopened copy must agree with the built one.
	for i := 0; i < 10000; i++ {
		k := keys[mrand.IntN(numKeys)]
		if built.Lookup(k) != loaded.Lookup(k) {
			fmt.Println("Mismatch between built and reopened function")
			return
		}
	}

	queryOrder := mrand.Perm(numKeys)
	numQueries := 100000
	queryStart := time.Now()
	for i := 0; i < numQueries; i++ {
		_ = loaded.Lookup(keys[queryOrder[i%numKeys]])
	}
	queryDur := time.Since(queryStart)
	avgLatency := float64(queryDur.Nanoseconds()) / float64(numQueries)

	fmt.Printf("\n")
	fmt.Printf("Keys:            %d\n", numKeys)
	fmt.Printf("File size:       %.2f MB (%.3f bits/key)\n",
		float64(info.Size())/1_000_000, float64(info.Size()*8)/float64(numKeys))
	fmt.Printf("Build:           %.2fs\n", buildDur.Seconds())
	fmt.Printf("WriteFile:       %.3fs\n", writeDur.Seconds())
	fmt.Printf("Open:            %.3fs\n", openDur.Seconds())
	fmt.Printf("Query latency:   %.1f ns (reopened copy)\n", avgLatency)
}
