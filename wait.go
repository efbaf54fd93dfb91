/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// WaitStrategy 等待策略，决定barrier如何等待以及publish时如何通知等待方
type WaitStrategy interface {
	// WaitFor 等待dependent推进到sequence，返回dependent当前的值
	// cursor为生产端游标，阻塞型策略在其上阻塞；每次循环都需要检查barrier是否已告警
	WaitFor(sequence int64, cursor, dependent SequenceReader, barrier SequenceBarrier) (int64, error)

	// SignalAllWhenBlocking 唤醒阻塞中的等待方，非阻塞
	SignalAllWhenBlocking()
}

// waitDependent 游标已满足后，自旋等待上游消费端
func waitDependent(sequence int64, dependent SequenceReader, barrier SequenceBarrier, backoff func(i int)) (int64, error) {
	for i := 0; ; i++ {
		if available := dependent.Get(); available >= sequence {
			return available, nil
		}
		if err := barrier.CheckAlert(); err != nil {
			return InitialCursorValue, err
		}
		backoff(i)
	}
}

// BusySpinWaitStrategy 纯自旋，延迟最低，会持续占满一个CPU
type BusySpinWaitStrategy struct{}

func NewBusySpinWaitStrategy() *BusySpinWaitStrategy {
	return &BusySpinWaitStrategy{}
}

func (w *BusySpinWaitStrategy) WaitFor(sequence int64, _, dependent SequenceReader, barrier SequenceBarrier) (int64, error) {
	return waitDependent(sequence, dependent, barrier, func(int) {})
}

func (w *BusySpinWaitStrategy) SignalAllWhenBlocking() {}

// ProcYieldWaitStrategy CPU空指令策略
type ProcYieldWaitStrategy struct {
	cycle uint32
}

func NewProcYieldWaitStrategy(cycle uint32) *ProcYieldWaitStrategy {
	return &ProcYieldWaitStrategy{
		cycle: cycle,
	}
}

func (w *ProcYieldWaitStrategy) WaitFor(sequence int64, _, dependent SequenceReader, barrier SequenceBarrier) (int64, error) {
	return waitDependent(sequence, dependent, barrier, func(int) {
		procyield(w.cycle)
	})
}

func (w *ProcYieldWaitStrategy) SignalAllWhenBlocking() {}

// YieldingWaitStrategy 调度等待策略
// 先自旋spinTries次，之后调用runtime.Gosched()使当前g主动让出cpu资源
type YieldingWaitStrategy struct {
	spinTries int
}

func NewYieldingWaitStrategy() *YieldingWaitStrategy {
	return &YieldingWaitStrategy{
		spinTries: 100,
	}
}

func (w *YieldingWaitStrategy) WaitFor(sequence int64, _, dependent SequenceReader, barrier SequenceBarrier) (int64, error) {
	return waitDependent(sequence, dependent, barrier, func(i int) {
		if i >= w.spinTries {
			runtime.Gosched()
		}
	})
}

func (w *YieldingWaitStrategy) SignalAllWhenBlocking() {}

// SleepingWaitStrategy 休眠等待策略
// 前 retries/2 次纯自旋，之后 retries/2 次调用 runtime.Gosched()，仍未等到时每次 Sleep(t)
// 前两个阶段只在等待开始的短时间内占用cpu，长时间空闲时的cpu开销由t决定，t越小延迟越低、开销越高
type SleepingWaitStrategy struct {
	retries int
	t       time.Duration
}

func NewSleepingWaitStrategy(wait time.Duration) *SleepingWaitStrategy {
	return &SleepingWaitStrategy{
		retries: 200,
		t:       wait,
	}
}

func (w *SleepingWaitStrategy) WaitFor(sequence int64, _, dependent SequenceReader, barrier SequenceBarrier) (int64, error) {
	return waitDependent(sequence, dependent, barrier, func(i int) {
		switch {
		case i < w.retries/2:
		case i < w.retries:
			runtime.Gosched()
		default:
			time.Sleep(w.t)
		}
	})
}

func (w *SleepingWaitStrategy) SignalAllWhenBlocking() {}

// BlockingWaitStrategy condition 阻塞策略
// 在生产端游标上阻塞，publish或Alert时广播唤醒；没有等待方时publish不会加锁
type BlockingWaitStrategy struct {
	cond    *sync.Cond
	waiters atomic.Int32
}

func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	return &BlockingWaitStrategy{
		cond: sync.NewCond(&sync.Mutex{}),
	}
}

func (w *BlockingWaitStrategy) WaitFor(sequence int64, cursor, dependent SequenceReader, barrier SequenceBarrier) (int64, error) {
	if cursor.Get() < sequence {
		w.cond.L.Lock()
		w.waiters.Add(1)
		for cursor.Get() < sequence {
			if err := barrier.CheckAlert(); err != nil {
				w.waiters.Add(-1)
				w.cond.L.Unlock()
				return InitialCursorValue, err
			}
			w.cond.Wait()
		}
		w.waiters.Add(-1)
		w.cond.L.Unlock()
	}
	return waitDependent(sequence, dependent, barrier, spinWait)
}

func (w *BlockingWaitStrategy) SignalAllWhenBlocking() {
	if w.waiters.Load() == 0 {
		return
	}
	w.cond.L.Lock()
	w.cond.Broadcast()
	w.cond.L.Unlock()
}

// TimeoutBlockingWaitStrategy chan阻塞策略，超过timeout仍未等到时返回 ErrTimeout
// 通知通过关闭当前chan并替换为新chan实现广播
type TimeoutBlockingWaitStrategy struct {
	mu      sync.Mutex
	bc      chan struct{}
	waiters atomic.Int32
	timeout time.Duration
}

func NewTimeoutBlockingWaitStrategy(timeout time.Duration) *TimeoutBlockingWaitStrategy {
	return &TimeoutBlockingWaitStrategy{
		bc:      make(chan struct{}),
		timeout: timeout,
	}
}

func (w *TimeoutBlockingWaitStrategy) notifyC() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bc
}

func (w *TimeoutBlockingWaitStrategy) WaitFor(sequence int64, cursor, dependent SequenceReader, barrier SequenceBarrier) (int64, error) {
	if cursor.Get() < sequence {
		w.waiters.Add(1)
		defer w.waiters.Add(-1)
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		for {
			// 先取chan再判断，判断之后的通知一定会关闭该chan
			c := w.notifyC()
			if cursor.Get() >= sequence {
				break
			}
			if err := barrier.CheckAlert(); err != nil {
				return InitialCursorValue, err
			}
			select {
			case <-c:
			case <-timer.C:
				return dependent.Get(), ErrTimeout
			}
		}
	}
	return waitDependent(sequence, dependent, barrier, spinWait)
}

func (w *TimeoutBlockingWaitStrategy) SignalAllWhenBlocking() {
	if w.waiters.Load() == 0 {
		return
	}
	w.mu.Lock()
	close(w.bc)
	w.bc = make(chan struct{})
	w.mu.Unlock()
}
