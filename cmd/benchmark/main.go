package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/effectparty/reactive"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	profileKey = "profile"
)

var (
	ww = []int{1, 10, 100, 1_000}
	hh = []int{1, 10, 100}
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Propagation benchmark for the reactive engine",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  itersKey,
				Usage: "Writes per graph",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to this file",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	iters := int(cmd.Int(itersKey))
	log.Printf("warming up")

	if err := benchmark("Immediate", iters, nil); err != nil {
		return err
	}
	return benchmark("Coalesced", iters, func(rs *reactive.ReactiveSystem) reactive.Scheduler {
		return rs.Queue()
	})
}

// benchmark builds w chains of h computeds off one signal, each ending in an
// effect, then times writes to the signal.
func benchmark(title string, iters int, scheduler func(rs *reactive.ReactiveSystem) reactive.Scheduler) error {
	tbl := table.NewWriter()
	tbl.SetTitle(title)
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "effect runs", "avg", "min", "p75", "p99", "max"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rs := reactive.CreateReactiveSystem(func(from *reactive.EffectRunner, err error) {
				log.Panic(err)
			})
			src := reactive.Signal(rs, 1)

			var opts []reactive.EffectOption
			if scheduler != nil {
				opts = append(opts, reactive.WithScheduler(scheduler(rs)))
			}

			runs := 0
			for i := 0; i < w; i++ {
				var last func() int = src.Value
				for j := 0; j < h; j++ {
					prev := last
					last = reactive.Computed(rs, func() int {
						return prev() + 1
					}).Value
				}

				if _, err := reactive.Effect(rs, func() error {
					runs++
					last()
					return nil
				}, opts...); err != nil {
					return err
				}
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				if err := src.SetValue(src.Peek() + 1); err != nil {
					return err
				}
				rs.Drain()
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRow(table.Row{
				fmt.Sprintf("propagate: %d * %d", w, h),
				runs,
				calc.Time.Avg,
				calc.Time.Min,
				calc.Time.P75,
				calc.Time.P99,
				calc.Time.Max,
			})
		}
	}

	tbl.Render()
	return nil
}
