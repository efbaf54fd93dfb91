/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package main

import (
	"fmt"
	"os"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/bruceshao/lockfree"
)

var (
	goSize    = 10000
	sizePerGo = 10000
	capacity  = 1024 * 1024
)

func main() {
	f, _ := os.OpenFile("cpu.pprof", os.O_CREATE|os.O_RDWR, 0644)
	defer f.Close()
	_ = pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()
	arg := ""
	if len(os.Args) > 1 {
		arg = os.Args[1]
	}
	switch arg {
	case "":
		fmt.Println("start lockfree and channel test")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			lockfreeMain()
		}()
		go func() {
			defer wg.Done()
			chanMain()
		}()
		wg.Wait()
	case "chan":
		fmt.Println("start channel test")
		chanMain()
	case "lockfree":
		fmt.Println("start lockfree test")
		lockfreeMain()
	}
	fmt.Println("all queue is over")
}

func lockfreeMain() {
	total := int64(goSize * sizePerGo)
	rb := lockfree.NewMultiProducerRingBuffer[uint64](capacity,
		lockfree.WithWaitStrategy(lockfree.NewSleepingWaitStrategy(time.Millisecond)))
	consumed := lockfree.NewInitialSequence()
	rb.AddGatingSequences(consumed)
	barrier := rb.NewBarrier()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for next := int64(0); next < total; {
			available, err := barrier.WaitFor(next)
			if err != nil {
				return
			}
			for seq := next; seq <= available; seq++ {
				if v := *rb.Get(seq); v%10000000 == 0 {
					fmt.Println("lockfree [", v, "]")
				}
			}
			consumed.Set(available)
			next = available + 1
		}
	}()

	ts := time.Now()
	var wg sync.WaitGroup
	wg.Add(goSize)
	for i := 0; i < goSize; i++ {
		go func(start int) {
			defer wg.Done()
			for j := 0; j < sizePerGo; j++ {
				rb.Write(uint64(start*sizePerGo + j + 1))
			}
		}(i)
	}
	wg.Wait()
	fmt.Println("=====lockfree[", time.Since(ts), "]=====")
	fmt.Println("----- lockfree write complete -----")
	<-done
}

func chanMain() {
	c := make(chan uint64, capacity)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for x := range c {
			if x%10000000 == 0 {
				fmt.Println("chan [", x, "]")
			}
		}
	}()
	ts := time.Now()
	var wg sync.WaitGroup
	wg.Add(goSize)
	for i := 0; i < goSize; i++ {
		go func(start int) {
			defer wg.Done()
			for j := 0; j < sizePerGo; j++ {
				c <- uint64(start*sizePerGo + j + 1)
			}
		}(i)
	}
	wg.Wait()
	fmt.Println("=====channel[", time.Since(ts), "]=====")
	fmt.Println("----- channel write complete -----")
	close(c)
	<-done
}
