// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package trigger drives a tracer from the presence of its trigger file. Creating the file
// starts tracing, removing it stops tracing.
package trigger // import "go.opentelemetry.io/minitrace/trigger"

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Controller is the tracer controlled by the watcher.
type Controller interface {
	IsActive() bool
	Start()
	Stop()
	Dump() error
}

// Config configures Watch.
type Config struct {
	// Path is the trigger file.
	Path string
	// Interval between two checks of the trigger file.
	Interval time.Duration
	// Jitter, [0..1], is added as +/- to Interval at each check so that the
	// processes of one user don't poll in lockstep.
	Jitter float64
	// DumpInterval, if non-zero, flushes the coverage recorded so far while tracing
	// is active.
	DumpInterval time.Duration
}

// Validate runs validations on the provided configuration.
func (cfg *Config) Validate() error {
	if cfg.Path == "" {
		return errors.New("trigger path must not be empty")
	}
	if cfg.Interval <= 0 {
		return errors.New("trigger poll interval must be positive")
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		return errors.New("trigger poll jitter must be in [0..1]")
	}
	if cfg.DumpInterval < 0 {
		return errors.New("dump interval must not be negative")
	}
	return nil
}

// addJitter adds +/- jitter (jitter is [0..1]) to base.
func addJitter(base time.Duration, jitter float64) time.Duration {
	return time.Duration((1 + jitter - 2*jitter*rand.Float64()) * float64(base))
}

// Watch polls the trigger file until ctx is canceled. The returned function stops
// the watcher and waits for it to exit. Tracing is left in whatever state it is in.
func Watch(ctx context.Context, ctl Controller, cfg Config) (func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	w := &watcher{ctl: ctl, cfg: cfg}
	ticker := time.NewTicker(addJitter(cfg.Interval, cfg.Jitter))
	go func() {
		defer wg.Done()
		defer ticker.Stop()

		w.check(time.Now())
		for {
			select {
			case now := <-ticker.C:
				w.check(now)
			case <-ctx.Done():
				return
			}
			ticker.Reset(addJitter(cfg.Interval, cfg.Jitter))
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}, nil
}

type watcher struct {
	ctl      Controller
	cfg      Config
	lastDump time.Time
}

// check reconciles the tracer state with the trigger file.
func (w *watcher) check(now time.Time) {
	_, err := os.Stat(w.cfg.Path)
	present := err == nil
	active := w.ctl.IsActive()

	switch {
	case present && !active:
		log.Debugf("Trigger file %s appeared", w.cfg.Path)
		w.ctl.Start()
		w.lastDump = now
	case !present && active:
		log.Debugf("Trigger file %s disappeared", w.cfg.Path)
		w.ctl.Stop()
	case active && w.cfg.DumpInterval > 0 && now.Sub(w.lastDump) >= w.cfg.DumpInterval:
		if err := w.ctl.Dump(); err != nil {
			log.Warnf("Periodic coverage dump failed: %v", err)
		}
		w.lastDump = now
	}
}
