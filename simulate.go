// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"time"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/minitrace/classfilter"
	"go.opentelemetry.io/minitrace/minitrace"
	"go.opentelemetry.io/minitrace/report"
	"go.opentelemetry.io/minitrace/trigger"
	"go.opentelemetry.io/minitrace/vm/simvm"
)

const (
	appLocation       = "/data/app/com.example.sim/base.apk"
	frameworkLocation = classfilter.DefaultSystemPrefix + "framework.jar"
	maxInsns          = 64
)

type simulateCmd struct {
	g      *globalFlags
	stdout io.Writer

	cycles       int
	classes      int
	methods      int
	executions   int
	threads      int
	seed         uint64
	watch        time.Duration
	poll         time.Duration
	dumpInterval time.Duration
}

func newSimulateCmd(g *globalFlags, stdout io.Writer) *ffcli.Command {
	args := &simulateCmd{g: g, stdout: stdout}

	set := flag.NewFlagSet("simulate", flag.ContinueOnError)
	set.IntVar(&args.cycles, "cycles", 3, "Number of start/stop cycles")
	set.IntVar(&args.classes, "classes", 8, "Number of loaded classes")
	set.IntVar(&args.methods, "methods", 4, "Number of methods per class")
	set.IntVar(&args.executions, "executions", 256,
		"Number of executed code units per thread and cycle")
	set.IntVar(&args.threads, "threads", 4, "Number of mutator threads")
	set.Uint64Var(&args.seed, "seed", 1, "Seed of the simulated workload")
	set.DurationVar(&args.watch, "watch", 0,
		"Instead of cycling, follow the trigger file for this long")
	set.DurationVar(&args.poll, "poll", time.Second, "Trigger file poll interval with -watch")
	set.DurationVar(&args.dumpInterval, "dump-interval", 0,
		"Periodic dump interval with -watch, 0 to only dump on stop")

	return &ffcli.Command{
		Name:       "simulate",
		ShortUsage: "minitrace simulate [flags]",
		ShortHelp:  "Run a simulated runtime through coverage tracing",
		FlagSet:    set,
		Exec:       args.exec,
	}
}

func (cmd *simulateCmd) validate() error {
	if cmd.classes <= 0 || cmd.methods <= 0 || cmd.threads <= 0 {
		return errors.New("classes, methods and threads must be positive")
	}
	if cmd.executions < 0 {
		return errors.New("executions must not be negative")
	}
	if cmd.watch <= 0 && cmd.cycles <= 0 {
		return errors.New("either -cycles or -watch is required")
	}
	return nil
}

func (cmd *simulateCmd) exec(ctx context.Context, _ []string) error {
	applyGlobals(cmd.g)
	if err := cmd.validate(); err != nil {
		return err
	}

	cfg := cmd.g.tracerConfig()
	sim, err := newSimulation(cfg, cmd.seed)
	if err != nil {
		return err
	}

	// Half of the classes exist before tracing starts, the rest is loaded while active.
	defs := sim.classDefs(cmd.classes, cmd.methods)
	sim.load(defs[:len(defs)/2])

	if cmd.watch > 0 {
		err = cmd.follow(ctx, sim, defs[len(defs)/2:])
	} else {
		err = cmd.cycle(ctx, sim, defs[len(defs)/2:])
	}
	sim.tracer.Shutdown()
	if err != nil {
		return err
	}

	s, err := report.Load(ctx, cfg.CoveragePath())
	if errors.Is(err, fs.ErrNotExist) {
		log.Info("No coverage data was recorded")
		return nil
	}
	if err != nil {
		return err
	}
	return report.WriteText(cmd.stdout, s)
}

// cycle runs the configured number of start/stop cycles.
func (cmd *simulateCmd) cycle(ctx context.Context, sim *simulation,
	later []simvm.ClassDef) error {
	if err := enableTrigger(sim.cfg.TriggerPath()); err != nil {
		return err
	}
	for i := range cmd.cycles {
		sim.tracer.Start()
		if i == 0 {
			sim.load(later)
		}
		if err := sim.run(ctx, cmd.threads, cmd.executions, cmd.seed+uint64(i)); err != nil {
			return err
		}
		sim.tracer.Stop()
	}
	return nil
}

// follow lets the trigger file drive the tracer until the watch duration elapsed.
func (cmd *simulateCmd) follow(ctx context.Context, sim *simulation,
	later []simvm.ClassDef) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.watch)
	defer cancel()

	stop, err := trigger.Watch(ctx, sim.tracer, trigger.Config{
		Path:         sim.cfg.TriggerPath(),
		Interval:     cmd.poll,
		Jitter:       0.1,
		DumpInterval: cmd.dumpInterval,
	})
	if err != nil {
		return err
	}
	defer stop()
	log.Infof("Following %s for %v", sim.cfg.TriggerPath(), cmd.watch)

	sim.load(later)
	for round := uint64(0); ctx.Err() == nil; round++ {
		if err = sim.run(ctx, cmd.threads, cmd.executions, cmd.seed+round); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}

// simulation is a simulated runtime hosting a tracer.
type simulation struct {
	cfg     minitrace.Config
	rt      *simvm.Runtime
	tracer  *minitrace.Tracer
	rng     *rand.Rand
	methods []*simvm.Method
}

func newSimulation(cfg minitrace.Config, seed uint64) (*simulation, error) {
	rt := simvm.New()
	tr, err := minitrace.New(rt, cfg)
	if err != nil {
		return nil, err
	}
	rt.AddClassLoadCallback(tr.ClassLoadCallback())

	return &simulation{
		cfg:    cfg,
		rt:     rt,
		tracer: tr,
		rng:    rand.New(rand.NewPCG(seed, seed)),
	}, nil
}

// classDefs generates application classes with every fourth class being a framework
// class and every seventh an interface.
func (s *simulation) classDefs(classes, methods int) []simvm.ClassDef {
	defs := make([]simvm.ClassDef, 0, classes)
	for i := range classes {
		def := simvm.ClassDef{
			Descriptor: fmt.Sprintf("Lcom/example/sim/Class%d;", i),
			Location:   appLocation,
			SourceFile: fmt.Sprintf("Class%d.java", i),
			Interface:  i%7 == 6,
		}
		if i%4 == 3 {
			def.Descriptor = fmt.Sprintf("Landroid/sim/Framework%d;", i)
			def.Location = frameworkLocation
			def.SourceFile = ""
		}
		for j := range methods {
			def.Methods = append(def.Methods, simvm.MethodDef{
				Name:      fmt.Sprintf("method%d", j),
				Signature: "()V",
				Insns:     uint16(1 + s.rng.IntN(maxInsns)),
				Abstract:  def.Interface,
			})
		}
		defs = append(defs, def)
	}
	return defs
}

func (s *simulation) load(defs []simvm.ClassDef) {
	for _, def := range defs {
		c := s.rt.LoadClass(def)
		for _, m := range c.DeclaredMethods() {
			if m.HasCode() {
				s.methods = append(s.methods, m.(*simvm.Method))
			}
		}
	}
}

// run executes random code units on threads concurrent mutators.
func (s *simulation) run(ctx context.Context, threads, executions int, seed uint64) error {
	if len(s.methods) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for t := range threads {
		rng := rand.New(rand.NewPCG(seed, uint64(t)))
		g.Go(func() error {
			for range executions {
				if ctx.Err() != nil {
					return nil
				}
				m := s.methods[rng.IntN(len(s.methods))]
				pc := uint32(rng.IntN(int(m.InsnsSize())))
				if err := s.rt.Execute(m, pc); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
