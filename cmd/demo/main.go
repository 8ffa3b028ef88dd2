package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/effectparty/reactive"
	"github.com/urfave/cli/v3"
)

const verboseKey = "verbose"

type scenario struct {
	name  string
	usage string
	run   func(ctx context.Context, rs *reactive.ReactiveSystem, tr *trace) error
}

var scenarios = []scenario{
	{"branch", "switch branches and drop stale dependencies", branch},
	{"recursion", "read-modify-write inside an effect", recursion},
	{"nested", "effects registered inside effects", nested},
	{"computed", "lazy cached derived values", computed},
	{"batch", "coalesce writes into one flush per turn", batch},
	{"deferred", "run effects after the turn on a timer", deferred},
}

func main() {
	cmd := &cli.Command{
		Name:  "demo",
		Usage: "Walk through the reactive engine",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  verboseKey,
				Usage: "Log engine internals",
			},
		},
	}

	for _, sc := range scenarios {
		cmd.Commands = append(cmd.Commands, &cli.Command{
			Name:  sc.name,
			Usage: sc.usage,
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return runScenario(ctx, cmd, sc)
			},
		})
	}
	cmd.Commands = append(cmd.Commands, &cli.Command{
		Name:  "all",
		Usage: "Run every scenario",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, sc := range scenarios {
				if err := runScenario(ctx, cmd, sc); err != nil {
					return err
				}
			}
			return nil
		},
	})

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// trace collects what ran so every scenario ends with a comparable digest.
type trace struct {
	lines []string
}

func (t *trace) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	t.lines = append(t.lines, line)
	log.Print(line)
}

func (t *trace) digest() uint64 {
	return xxhash.Sum64String(strings.Join(t.lines, "\n"))
}

func runScenario(ctx context.Context, cmd *cli.Command, sc scenario) error {
	level := slog.LevelInfo
	if cmd.Root().Bool(verboseKey) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	rs := reactive.CreateReactiveSystem(func(from *reactive.EffectRunner, err error) {
		logger.Error("effect failed", "effect", from.Name(), "err", err)
	}, reactive.WithLogger(logger))

	log.Printf("== %s: %s", sc.name, sc.usage)
	tr := &trace{}
	if err := sc.run(ctx, rs, tr); err != nil {
		return fmt.Errorf("scenario %s: %w", sc.name, err)
	}
	log.Printf("== %s done, %d steps, digest %016x", sc.name, len(tr.lines), tr.digest())
	return nil
}

func branch(ctx context.Context, rs *reactive.ReactiveSystem, tr *trace) error {
	state := reactive.NewRecord(rs, map[reactive.Key]any{
		"ok":   true,
		"text": "hello world",
	})

	if _, err := reactive.Effect(rs, func() error {
		if reactive.Field[bool](state, "ok") {
			tr.logf("text is %q", reactive.Field[string](state, "text"))
		} else {
			tr.logf("not ok")
		}
		return nil
	}); err != nil {
		return err
	}

	if err := state.Set("ok", false); err != nil {
		return err
	}
	// no longer read, nothing runs
	return state.Set("text", "hello again")
}

func recursion(ctx context.Context, rs *reactive.ReactiveSystem, tr *trace) error {
	counter := reactive.Signal(rs, 0)
	if _, err := reactive.Effect(rs, func() error {
		next := counter.Value() + 1
		tr.logf("incrementing to %d", next)
		return counter.SetValue(next)
	}); err != nil {
		return err
	}
	tr.logf("counter is %d", counter.Peek())
	return nil
}

func nested(ctx context.Context, rs *reactive.ReactiveSystem, tr *trace) error {
	state := reactive.NewRecord(rs, map[reactive.Key]any{"foo": 1, "bar": 1})

	if _, err := reactive.Effect(rs, func() error {
		tr.logf("outer runs")
		if _, err := reactive.Effect(rs, func() error {
			tr.logf("inner runs, bar=%d", reactive.Field[int](state, "bar"))
			return nil
		}); err != nil {
			return err
		}
		tr.logf("outer read foo=%d", reactive.Field[int](state, "foo"))
		return nil
	}); err != nil {
		return err
	}

	if err := state.Set("foo", 2); err != nil {
		return err
	}
	return state.Set("bar", 2)
}

func computed(ctx context.Context, rs *reactive.ReactiveSystem, tr *trace) error {
	foo := reactive.Signal(rs, 1)
	bar := reactive.Signal(rs, 2)
	sum := reactive.Computed(rs, func() int {
		tr.logf("computing sum")
		return foo.Value() + bar.Value()
	})

	tr.logf("sum is %d", sum.Value())
	tr.logf("sum is %d", sum.Value())

	if _, err := reactive.Effect(rs, func() error {
		tr.logf("effect sees sum %d", sum.Value())
		return nil
	}); err != nil {
		return err
	}
	return foo.SetValue(10)
}

func batch(ctx context.Context, rs *reactive.ReactiveSystem, tr *trace) error {
	count := reactive.Signal(rs, 1)
	if _, err := reactive.Effect(rs, func() error {
		tr.logf("count is %d", count.Value())
		return nil
	}, reactive.WithScheduler(rs.Queue())); err != nil {
		return err
	}

	for i := 2; i <= 4; i++ {
		if err := count.SetValue(i); err != nil {
			return err
		}
	}
	tr.logf("end of turn, %d job queued", rs.Queue().Len())
	rs.Drain()
	return nil
}

func deferred(ctx context.Context, rs *reactive.ReactiveSystem, tr *trace) error {
	count := reactive.Signal(rs, 1)
	if _, err := reactive.Effect(rs, func() error {
		tr.logf("deferred effect sees %d", count.Value())
		return nil
	}, reactive.WithScheduler(reactive.Deferred)); err != nil {
		return err
	}

	loop := rs.Loop()
	loop.AfterFunc(10*time.Millisecond, func() {
		tr.logf("timer fired")
		if err := count.SetValue(3); err != nil {
			tr.logf("write failed: %v", err)
		}
	})
	if err := count.SetValue(2); err != nil {
		return err
	}
	tr.logf("end of synchronous code")

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return loop.Run(ctx)
}
