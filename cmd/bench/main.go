// Bench is a benchmarking tool for measuring comprez packing density, table
// build throughput and random-access read latency.
//
// Usage:
//
//	go run ./cmd/bench -records 10000000 -workers 8
//
// Flags:
//
//	-records   Number of records in the table (default: 10,000,000)
//	-workers   Number of parallel batch workers (default: 1)
//	-batch     Records per batch (default: 4096)
//	-seed      Seed for value generation (default: 0x1234)
//	-events    Number of event values for the variant benchmark (default: 1,000,000)
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	mrand "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/tamirms/comprez"
)

// Reading is one sensor sample. Its schema has a static width, so it can be
// stored in a table.
type Reading struct {
	Sensor   uint16 `comprez:"max=4095"`
	TempDeci uint16 `comprez:"max=1500"`
	Humidity uint8  `comprez:"max=100"`
	Online   bool
	Samples  []uint8 `comprez:"max=15,len=8,slots"`
}

// byteAlignedReading is the size of Reading with every field rounded to
// whole bytes and the samples stored as a fixed [8]uint8.
const byteAlignedReading = 2 + 2 + 1 + 1 + 8

// Event is a device event. Its variant payload makes the width dynamic.
type Event interface{ isEvent() }

type Idle struct{}
type Alarm struct{ Code uint16 }
type Fault struct{ Code uint8 }

func (Idle) isEvent()  {}
func (Alarm) isEvent() {}
func (Fault) isEvent() {}

// Report is a derived record carrying a registered variant.
type Report struct {
	Device uint32 `comprez:"max=1000000"`
	Event  Event
}

func init() {
	comprez.Register[Event](comprez.MustVariant([]comprez.VariantCase[Event]{
		comprez.Unit[Event]("idle", Idle{}, func(e Event) bool { _, ok := e.(Idle); return ok }),
		comprez.Case("alarm", comprez.Integer[uint16](), comprez.Max(1023),
			func(c uint16) Event { return Alarm{Code: c} },
			func(e Event) (uint16, bool) { a, ok := e.(Alarm); return a.Code, ok }),
		comprez.Case("fault", comprez.Integer[uint8](), comprez.Max(63),
			func(c uint8) Event { return Fault{Code: c} },
			func(e Event) (uint8, bool) { f, ok := e.(Fault); return f.Code, ok }),
	}))
}

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
		maxRSS *= 1024
	}
	return maxRSS
}

// hash returns the murmur3 hash of i under seed, for deterministic values.
func hash(i uint64, seed uint32) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], i)
	return murmur3.Sum64WithSeed(buf[:], seed)
}

func makeReading(i uint64, seed uint32) Reading {
	h := hash(i, seed)
	r := Reading{
		Sensor:   uint16(h % 4096),
		TempDeci: uint16((h >> 12) % 1501),
		Humidity: uint8((h >> 23) % 101),
		Online:   h>>31&1 == 1,
	}
	n := int((h >> 32) % 9)
	r.Samples = make([]uint8, n)
	for j := range r.Samples {
		r.Samples[j] = uint8(h >> (36 + 3*j) & 15)
	}
	return r
}

func makeReport(i uint64, seed uint32) Report {
	h := hash(i, seed^0x5eed)
	r := Report{Device: uint32(h % 1000001)}
	switch (h >> 20) % 3 {
	case 0:
		r.Event = Idle{}
	case 1:
		r.Event = Alarm{Code: uint16((h >> 24) % 1024)}
	default:
		r.Event = Fault{Code: uint8((h >> 24) % 64)}
	}
	return r
}

func main() {
	recordsFlag := flag.Uint64("records", 10_000_000, "number of records")
	workersFlag := flag.Int("workers", 1, "number of parallel workers for building")
	batchFlag := flag.Int("batch", 4096, "records per batch")
	seedFlag := flag.Uint("seed", 0x1234, "value generation seed")
	eventsFlag := flag.Int("events", 1_000_000, "number of event values to compress")
	flag.Parse()

	numRecords := *recordsFlag
	seed := uint32(*seedFlag)
	if numRecords == 0 {
		fmt.Println("-records must be positive")
		return
	}

	codec, err := comprez.Derive[Reading]()
	if err != nil {
		fmt.Printf("Derive failed: %v\n", err)
		return
	}
	recordBits, _ := codec.MaxBinaries(comprez.NoBound).Width()
	fmt.Printf("Schema: %s (%d bits)\n", codec.MaxBinaries(comprez.NoBound), recordBits)

	tmpDir, err := os.MkdirTemp("", "bench-")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	tablePath := filepath.Join(tmpDir, "readings.cmpz")

	fmt.Println("Building table...")
	buildStart := time.Now()
	w, err := comprez.NewTableWriter(context.Background(), tablePath, codec, numRecords,
		comprez.WithWorkers(*workersFlag), comprez.WithBatchRecords(*batchFlag))
	if err != nil {
		fmt.Printf("NewTableWriter failed: %v\n", err)
		return
	}
	for i := range numRecords {
		if err := w.Add(makeReading(i, seed)); err != nil {
			_ = w.Close() // Best-effort cleanup; primary error is Add failure
			fmt.Printf("Add failed: %v\n", err)
			return
		}
	}
	if err := w.Finish(); err != nil {
		fmt.Printf("Build failed: %v\n", err)
		return
	}
	buildDuration := time.Since(buildStart)

	tbl, err := comprez.OpenTable(tablePath, codec)
	if err != nil {
		fmt.Printf("Open failed: %v\n", err)
		return
	}
	defer func() { _ = tbl.Close() }()

	fmt.Println("Verifying...")
	verifyStart := time.Now()
	if err := tbl.Verify(); err != nil {
		fmt.Printf("Verify failed: %v\n", err)
		return
	}
	verifyDuration := time.Since(verifyStart)

	fmt.Println("Benchmarking reads...")
	numReads := 100_000
	readStart := time.Now()
	for range numReads {
		_, _ = tbl.Get(mrand.Uint64N(numRecords)) // Benchmark: measuring throughput, not correctness
	}
	readDuration := time.Since(readStart)
	avgLatency := float64(readDuration.Nanoseconds()) / float64(numReads) / 1000

	fmt.Println("Spot-checking reads...")
	for range 1000 {
		i := mrand.Uint64N(numRecords)
		got, err := tbl.Get(i)
		if err != nil {
			fmt.Printf("Get(%d) failed: %v\n", i, err)
			return
		}
		want := makeReading(i, seed)
		if got.Sensor != want.Sensor || got.TempDeci != want.TempDeci || len(got.Samples) != len(want.Samples) {
			fmt.Printf("Get(%d) = %+v, want %+v\n", i, got, want)
			return
		}
	}

	fmt.Println("Compressing events...")
	reports, err := comprez.Derive[Report]()
	if err != nil {
		fmt.Printf("Derive failed: %v\n", err)
		return
	}
	var eventBits int
	eventStart := time.Now()
	for i := range uint64(max(*eventsFlag, 0)) {
		out, err := reports.CompressToBinaries(makeReport(i, seed), comprez.NoBound)
		if err != nil {
			fmt.Printf("Compress failed: %v\n", err)
			return
		}
		eventBits += out.BitLen()
	}
	eventDuration := time.Since(eventStart)

	stats := tbl.Stats()
	fmt.Printf("\n")
	fmt.Printf("╔═════════════════════╦════════════════════╗\n")
	fmt.Printf("║ Metric              ║ Value              ║\n")
	fmt.Printf("╠═════════════════════╬════════════════════╣\n")
	fmt.Printf("║ Records             ║ %12d       ║\n", stats.Records)
	fmt.Printf("║ Packed width        ║ %6d bits/rec    ║\n", stats.RecordBits)
	fmt.Printf("║ File density        ║ %6.2f bits/rec    ║\n", stats.BitsPerRecord)
	fmt.Printf("║ Byte-aligned width  ║ %6d bits/rec    ║\n", byteAlignedReading*8)
	fmt.Printf("║ File size           ║ %8.1f MB        ║\n", float64(stats.FileSize)/1_000_000)
	fmt.Printf("║ Build time          ║ %6.2f sec         ║\n", buildDuration.Seconds())
	fmt.Printf("║ Build throughput    ║ %6.2f M/sec       ║\n", float64(numRecords)/buildDuration.Seconds()/1_000_000)
	fmt.Printf("║ Verify time         ║ %6.2f sec         ║\n", verifyDuration.Seconds())
	fmt.Printf("║ Get latency         ║ %6.2f μs          ║\n", avgLatency)
	if *eventsFlag > 0 {
		fmt.Printf("║ Event avg width     ║ %6.2f bits        ║\n", float64(eventBits)/float64(*eventsFlag))
		fmt.Printf("║ Event throughput    ║ %6.2f M/sec       ║\n", float64(*eventsFlag)/eventDuration.Seconds()/1_000_000)
	}
	fmt.Printf("║ Peak RSS            ║ %6.1f MB          ║\n", float64(getMaxRSS())/1_000_000)
	fmt.Printf("╚═════════════════════╩════════════════════╝\n")
}
