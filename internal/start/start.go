// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package start runs a tool's work function under interrupt-triggered
// cancellation, and fans independent pieces of work out to a group.
package start

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Func is one unit of work driven by a context.
type Func func(ctx context.Context) error

// Run invokes work with a context that is canceled on interrupt. If
// the work does not return within grace after cancellation, Run stops
// waiting and returns.
func Run(ctx context.Context, grace time.Duration, work Func) error {
	notify := make(chan os.Signal, 3)
	signal.Notify(notify, os.Interrupt)
	defer signal.Stop(notify)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	once := &sync.Once{}
	fin := make(chan bool)
	finish := func() {
		once.Do(func() { close(fin) })
	}

	workErr := atomic.Value{}
	go func() {
		if err := work(ctx); err != nil {
			workErr.Store(err)
		}
		finish()
	}()

	select {
	case <-notify:
	case <-fin:
	}
	cancel()
	go func() {
		<-time.After(grace)
		finish()
	}()
	<-fin

	if err, ok := workErr.Load().(error); ok {
		return err
	}
	return nil
}

// RunAll runs every function on its own goroutine and waits for all
// of them, returning the first error. The shared context is canceled
// as soon as any function fails.
func RunAll(ctx context.Context, runs ...Func) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, run := range runs {
		run := run
		group.Go(func() error { return run(ctx) })
	}
	return group.Wait()
}
