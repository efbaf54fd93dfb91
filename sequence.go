/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"strconv"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// InitialCursorValue 序号的起始值，第一个可被claim的序号为0
const InitialCursorValue int64 = -1

// SequenceReader 只读的序号视图，barrier和等待策略只需要读取
type SequenceReader interface {
	Get() int64
}

// Sequence 持续增长的int64序列，既作为生产端的游标，也作为每个消费端的进度
// 通过atomic操作保证可见性，避免锁
// 前后各填充一个缓存行，保证v独占一个缓存行，避免与相邻的Sequence或持有它的对象产生伪共享
type Sequence struct {
	_ cpu.CacheLinePad
	v atomic.Int64
	_ cpu.CacheLinePad
}

// NewSequence 创建以initial为初始值的序列
func NewSequence(initial int64) *Sequence {
	s := &Sequence{}
	s.v.Store(initial)
	return s
}

// NewInitialSequence 创建初始值为 InitialCursorValue 的序列
func NewInitialSequence() *Sequence {
	return NewSequence(InitialCursorValue)
}

func (s *Sequence) Get() int64 {
	return s.v.Load()
}

// Set 写入新值，写入之前的所有内存操作对于读到该值的g均可见
func (s *Sequence) Set(v int64) {
	s.v.Store(v)
}

func (s *Sequence) CompareAndSet(expected, v int64) bool {
	return s.v.CompareAndSwap(expected, v)
}

func (s *Sequence) IncrementAndGet() int64 {
	return s.v.Add(1)
}

func (s *Sequence) AddAndGet(delta int64) int64 {
	return s.v.Add(delta)
}

func (s *Sequence) String() string {
	return strconv.FormatInt(s.Get(), 10)
}
