// bench-compile measures compile throughput and heap usage of the engine over
// a directory of portfolio documents.
//
// Usage:
//
//	go run ./scripts/bench-compile --dir examples --rounds 2000 --cache 64 \
//	  --profile-dir docs/profiles/compile
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/victortavares4/dsl-investments/internal/engine"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

type document struct {
	name   string
	source string
}

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	numGC     uint32
}

func main() {
	dir := flag.String("dir", "examples", "Directory of .port documents")
	rounds := flag.Int("rounds", 1000, "Passes over every document")
	cacheSize := flag.Int("cache", 0, "Compile cache entries (0 = disabled)")
	profileDir := flag.String("profile-dir", "", "Directory to write CPU and heap profiles")

	flag.Parse()

	docs := loadDocuments(*dir)
	if len(docs) == 0 {
		log.Fatalf("no .port documents in %s", *dir)
	}

	log.Printf("loaded %d documents from %s", len(docs), *dir)

	runner, err := engine.New(engine.Options{
		Thresholds: validator.DefaultThresholds(),
		CacheSize:  *cacheSize,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}

		stop := startCPUProfile(filepath.Join(*profileDir, "cpu.prof"))
		defer stop()
	}

	var snapshots []heapSnapshot

	takeSnapshot := func(label string) {
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			numGC:     m.NumGC,
		})
	}

	ctx := context.Background()
	outcomes := map[string]int{}

	takeSnapshot("before")

	start := time.Now()

	for range *rounds {
		for _, doc := range docs {
			out, cerr := runner.Compile(ctx, doc.name, doc.source)
			if cerr != nil {
				log.Fatalf("compile %s: %v", doc.name, cerr)
			}

			outcomes[out.Status()]++
		}
	}

	elapsed := time.Since(start)

	takeSnapshot("after")

	if *profileDir != "" {
		writeHeapProfile(filepath.Join(*profileDir, "heap.prof"))
	}

	total := *rounds * len(docs)
	stats := runner.CacheStats()

	fmt.Println()
	fmt.Printf("%s compilations in %s (%s/op, %.0f docs/s)\n",
		humanize.Comma(int64(total)), elapsed.Round(time.Millisecond),
		elapsed/time.Duration(total), float64(total)/elapsed.Seconds())
	fmt.Printf("outcomes: %v\n", outcomes)
	fmt.Printf("cache: %d hits, %d misses, %.1f%% hit rate\n", stats.Hits, stats.Misses, stats.HitRate()*100)
	fmt.Println()

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Phase", "Heap in use", "Heap sys", "GC cycles"})

	for _, s := range snapshots {
		tbl.AppendRow(table.Row{s.label, humanize.Bytes(s.heapInUse), humanize.Bytes(s.heapSys), s.numGC})
	}

	tbl.Render()
}

func loadDocuments(dir string) []document {
	paths, err := filepath.Glob(filepath.Join(dir, "*.port"))
	if err != nil {
		log.Fatalf("glob: %v", err)
	}

	docs := make([]document, 0, len(paths))

	for _, p := range paths {
		data, rerr := os.ReadFile(p)
		if rerr != nil {
			log.Fatalf("read %s: %v", p, rerr)
		}

		docs = append(docs, document{name: filepath.Base(p), source: string(data)})
	}

	return docs
}

func startCPUProfile(path string) func() {
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("create cpu profile: %v", err)
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		log.Fatalf("start cpu profile: %v", err)
	}

	log.Printf("CPU profiling enabled -> %s", path)

	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}
}

func writeHeapProfile(path string) {
	runtime.GC()

	f, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer f.Close()

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}
