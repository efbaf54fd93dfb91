/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package main

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/valyala/fastrand"

	"github.com/bruceshao/lockfree"
	"github.com/bruceshao/lockfree/internal/logging"
)

const (
	producers = 10
	perGo     = 10
)

func main() {
	defer logging.Cleanup()

	fmt.Println("========== start write by discard ==========")
	writeByDiscard()
	fmt.Println("========== complete write by discard ==========")
	fmt.Println("========== start two-stage pipeline ==========")
	pipeline()
	fmt.Println("========== complete two-stage pipeline ==========")
}

// writeByDiscard 多生产者写入，写入窗口不足时丢弃
func writeByDiscard() {
	var counter = uint64(0)
	rb := lockfree.NewMultiProducerRingBuffer[uint64](2,
		lockfree.WithWaitStrategy(lockfree.NewBlockingWaitStrategy()))
	consumed := lockfree.NewInitialSequence()
	rb.AddGatingSequences(consumed)
	barrier := rb.NewBarrier()

	var cwg sync.WaitGroup
	cwg.Add(1)
	go func() {
		defer cwg.Done()
		consume(barrier, consumed, func(seq int64) {
			// 每次处理都会进行随机休眠，可以导致消费端变慢
			time.Sleep(time.Duration(fastrand.Uint32n(1000)) * time.Microsecond)
			fmt.Println("consumer ", *rb.Get(seq))
		})
	}()

	pool, err := ants.NewPool(producers)
	if err != nil {
		panic(err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		err = pool.Submit(func() {
			defer wg.Done()
			for j := 0; j < perGo; j++ {
				v := atomic.AddUint64(&counter, 1)
				if _, err := rb.TryWrite(v); err != nil {
					// 表示无法写入，丢弃
					fmt.Println("discard ", v, err)
					continue
				}
				fmt.Println("write ", v)
			}
		})
		if err != nil {
			panic(err)
		}
	}
	wg.Wait()
	waitConsumed(rb.Cursor(), consumed)
	barrier.Alert()
	cwg.Wait()
}

// pipeline stage2 依赖 stage1 的处理结果，生产端只受 stage2 限制
func pipeline() {
	rb := lockfree.NewMultiProducerRingBuffer[int64](64,
		lockfree.WithWaitStrategy(lockfree.NewYieldingWaitStrategy()))
	stage1, stage2 := lockfree.NewInitialSequence(), lockfree.NewInitialSequence()
	rb.AddGatingSequences(stage2)
	b1 := rb.NewBarrier()
	b2 := rb.NewBarrier(stage1)

	var (
		cwg sync.WaitGroup
		sum int64
	)
	cwg.Add(2)
	go func() {
		defer cwg.Done()
		consume(b1, stage1, func(seq int64) {
			*rb.Get(seq) *= 2
		})
	}()
	go func() {
		defer cwg.Done()
		consume(b2, stage2, func(seq int64) {
			sum += *rb.Get(seq)
		})
	}()

	pool, err := ants.NewPool(producers)
	if err != nil {
		panic(err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		start := int64(i * perGo)
		if err = pool.Submit(func() {
			defer wg.Done()
			for j := int64(0); j < perGo; j++ {
				rb.Write(start + j)
			}
		}); err != nil {
			panic(err)
		}
	}
	wg.Wait()
	waitConsumed(rb.Cursor(), stage2)
	b1.Alert()
	b2.Alert()
	cwg.Wait()
	fmt.Printf("pipeline sum: %d\n", sum)
}

// consume 消费循环，barrier被Alert后退出
func consume(barrier lockfree.SequenceBarrier, progress *lockfree.Sequence, handle func(seq int64)) {
	for next := progress.Get() + 1; ; {
		available, err := barrier.WaitFor(next)
		if errors.Is(err, lockfree.ErrAlerted) {
			return
		}
		if err != nil {
			panic(err)
		}
		for seq := next; seq <= available; seq++ {
			handle(seq)
		}
		progress.Set(available)
		next = available + 1
	}
}

func waitConsumed(cursor int64, progress *lockfree.Sequence) {
	for progress.Get() < cursor {
		time.Sleep(time.Millisecond)
	}
}
