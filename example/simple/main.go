/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/bruceshao/lockfree"
)

var (
	total    = int64(10000000)
	capacity = 1024 * 1024
)

func main() {
	now := time.Now()

	// 创建单生产者RingBuffer，消费端等待时休眠
	rb := lockfree.NewSingleProducerRingBuffer[uint64](
		capacity,
		lockfree.WithWaitStrategy(lockfree.NewSleepingWaitStrategy(time.Millisecond)),
	)

	// 注册消费端：其序列作为gating序列限制生产端，barrier跟踪生产端游标
	consumed := lockfree.NewInitialSequence()
	rb.AddGatingSequences(consumed)
	barrier := rb.NewBarrier()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var sum uint64
		for next := int64(0); next < total; {
			available, err := barrier.WaitFor(next)
			if err != nil {
				fmt.Println("consumer exit: ", err)
				return
			}
			for seq := next; seq <= available; seq++ {
				sum += *rb.Get(seq)
			}
			consumed.Set(available)
			next = available + 1
			if next%(total/10) == 0 {
				fmt.Printf("consumer processed %v\n", next)
			}
		}
		fmt.Printf("consumer has been consumed already, read count: %v, sum: %v, time cost: %v\n", total, sum, time.Since(now))
	}()

	for i := int64(0); i < total; i++ {
		rb.Write(uint64(i + 1))
	}
	fmt.Printf("producer has been writed, write count: %v, time cost: %v \n", total, time.Since(now).String())

	// wait for consumer
	wg.Wait()
}
