// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xsync implements some extra synchronization tools.
package xsync

import "sync"

// Latch implements a "latchable" semaphore: once triggered, it stays triggered, and any
// waiting goroutines are released.
type Latch struct {
	once  sync.Once
	latch chan struct{}
}

// NewLatch returns an un-triggered Latch.
func NewLatch() *Latch {
	return &Latch{latch: make(chan struct{})}
}

// Trigger the latch. It's safe to call it more than once.
func (l *Latch) Trigger() {
	l.once.Do(func() { close(l.latch) })
}

// Wait blocks until the latch is triggered.
func (l *Latch) Wait() {
	<-l.latch
}

// Test returns whether the latch has been triggered, without blocking.
func (l *Latch) Test() bool {
	select {
	case <-l.latch:
		return true
	default:
		return false
	}
}

// WaitChan returns a channel that is closed when the latch is triggered.
func (l *Latch) WaitChan() <-chan struct{} {
	return l.latch
}
