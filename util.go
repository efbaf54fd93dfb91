/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"fmt"
	"math/bits"
	"runtime"
	_ "unsafe"
)

const (
	activeSpin  = 4  // 多核情况下先进行procyield的次数
	yieldCycles = 15 // 每次procyield的空转周期
)

var (
	ncpu = runtime.NumCPU()
	spin = 0
)

func init() {
	if ncpu > 1 {
		spin = activeSpin
	}
}

//go:linkname procyield runtime.procyield
func procyield(cycles uint32)

// spinWait 自旋等待的退避，前 spin 次执行CPU空指令，之后通过 runtime.Gosched() 让出
// 调用方负责在每次调用前重新检查退出条件
func spinWait(i int) {
	if i < spin {
		procyield(yieldCycles)
	} else {
		runtime.Gosched()
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// log2 仅适用于2的幂
func log2(n int) uint {
	return uint(bits.TrailingZeros64(uint64(n)))
}

// assertBufferSize 容量必须是大于0的2的幂，否则属于编程错误，直接panic
func assertBufferSize(bufferSize int) {
	if !isPowerOfTwo(bufferSize) {
		panic(fmt.Sprintf("lockfree: buffer size must be a positive power of 2, got %d", bufferSize))
	}
}
