package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/effectparty/reactive"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

type graphConfig struct {
	name           string  // unique name of the run
	width          int     // nodes per layer
	layers         int     // layers including the sources
	staticFraction float64 // fraction of nodes that always read all their sources
	nSources       int     // sources read by each node
	readFraction   float64 // fraction of leaves read after each write
	iterations     int     // writes per run
}

type result struct {
	sum      int
	count    int64
	duration time.Duration
	checksum uint64
}

func main() {
	log.Print("Starting dynamic graph benchmark, please wait...")
	defer log.Print("Finished dynamic graph benchmark")

	configs := []graphConfig{
		{name: "simple component", width: 10, layers: 5, staticFraction: 1, nSources: 2, readFraction: 0.2, iterations: 60000},
		{name: "dynamic component", width: 10, layers: 10, staticFraction: 0.75, nSources: 6, readFraction: 0.2, iterations: 15000},
		{name: "large web app", width: 1000, layers: 12, staticFraction: 0.95, nSources: 4, readFraction: 1, iterations: 700},
		{name: "wide dense", width: 1000, layers: 5, staticFraction: 1, nSources: 25, readFraction: 1, iterations: 300},
		{name: "deep", width: 5, layers: 500, staticFraction: 1, nSources: 3, readFraction: 1, iterations: 500},
		{name: "very dynamic", width: 100, layers: 15, staticFraction: 0.5, nSources: 6, readFraction: 1, iterations: 2000},
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"size", "nSources", "read%", "static%",
		"nTimes", "test", "time", "updateRate", "checksum", "title",
	})

	const repeats = 3
	for _, cfg := range configs {
		log.Printf("Running '%s' config", cfg.name)

		best := result{duration: time.Hour}
		for i := 0; i < repeats; i++ {
			res := runOnce(cfg)
			if i > 0 && res.checksum != best.checksum {
				log.Fatalf("'%s' is not deterministic: %x != %x", cfg.name, res.checksum, best.checksum)
			}
			if res.duration < best.duration {
				best = res
			}
		}

		updateRate := float64(best.count) / (float64(best.duration) / float64(time.Millisecond))
		table.Append([]string{
			fmt.Sprintf("%dx%d", cfg.width, cfg.layers),
			fmt.Sprint(cfg.nSources),
			fmt.Sprint(cfg.readFraction),
			fmt.Sprint(cfg.staticFraction),
			humanize.Comma(int64(cfg.iterations)),
			cfg.name,
			fmt.Sprint(best.duration),
			humanize.Comma(int64(updateRate)),
			fmt.Sprintf("%016x", best.checksum),
			title(cfg),
		})
	}
	table.Render()
}

func title(cfg graphConfig) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%dx%d %d sources", cfg.width, cfg.layers, cfg.nSources))
	if cfg.staticFraction < 1 {
		sb.WriteString(" dynamic")
	}
	if cfg.readFraction < 1 {
		sb.WriteString(fmt.Sprintf(" read %0.2f%%", 100*cfg.readFraction))
	}
	return sb.String()
}

// runOnce builds a fresh graph, writes one source per iteration inside a
// batch and reads a fixed subset of the leaves. The checksum hashes every
// leaf sum so repeated runs can be compared.
func runOnce(cfg graphConfig) result {
	rs := reactive.CreateReactiveSystem(func(from *reactive.EffectRunner, err error) {
		log.Panic(err)
	})
	var count int64

	sources := make([]*reactive.WriteableSignal[int], cfg.width)
	reads := make([]func() int, cfg.width)
	for i := range sources {
		sources[i] = reactive.Signal(rs, i)
		reads[i] = sources[i].Value
	}

	random := rand.New(rand.NewSource(0))
	for l := 1; l < cfg.layers; l++ {
		reads = makeRow(rs, reads, cfg, random, &count)
	}

	skip := int(math.Round(float64(len(reads)) * (1 - cfg.readFraction)))
	leaves := removeElems(reads, skip, random)

	digest := xxhash.New()
	var buf [8]byte
	start := time.Now()
	for i := 0; i < cfg.iterations; i++ {
		src := i % len(sources)
		if err := rs.Batch(func() error {
			return sources[src].SetValue(i + src)
		}); err != nil {
			log.Panic(err)
		}

		sum := 0
		for _, leaf := range leaves {
			sum += leaf()
		}
		binary.LittleEndian.PutUint64(buf[:], uint64(sum))
		digest.Write(buf[:])
	}
	duration := time.Since(start)

	sum := 0
	for _, leaf := range leaves {
		sum += leaf()
	}
	return result{
		sum:      sum,
		count:    count,
		duration: duration,
		checksum: digest.Sum64(),
	}
}

func makeRow(rs *reactive.ReactiveSystem, prev []func() int, cfg graphConfig, random *rand.Rand, count *int64) []func() int {
	row := make([]func() int, len(prev))
	for myDex := range prev {
		mySources := make([]func() int, 0, cfg.nSources)
		for sourceDex := 0; sourceDex < cfg.nSources; sourceDex++ {
			mySources = append(mySources, prev[(myDex+sourceDex)%len(prev)])
		}

		if random.Float64() < cfg.staticFraction {
			row[myDex] = reactive.Computed(rs, func() int {
				*count++
				sum := 0
				for _, source := range mySources {
					sum += source()
				}
				return sum
			}).Value
			continue
		}

		// dynamic node, skips one source depending on the first one
		first := mySources[0]
		tail := mySources[1:]
		row[myDex] = reactive.Computed(rs, func() int {
			*count++
			sum := first()
			shouldDrop := sum&0x1 > 0
			dropDex := 0
			if len(tail) > 0 {
				dropDex = sum % len(tail)
			}
			for i := 0; i < len(tail); i++ {
				if shouldDrop && i == dropDex {
					continue
				}
				sum += tail[i]()
			}
			return sum
		}).Value
	}
	return row
}

func removeElems[T any](src []T, rmCount int, random *rand.Rand) []T {
	copyWithRemovals := make([]T, len(src))
	copy(copyWithRemovals, src)
	for i := 0; i < rmCount; i++ {
		rmDex := random.Intn(len(copyWithRemovals))
		copyWithRemovals[rmDex] = copyWithRemovals[len(copyWithRemovals)-1]
		copyWithRemovals = copyWithRemovals[:len(copyWithRemovals)-1]
	}
	return copyWithRemovals
}
