/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"math"
	"sync/atomic"
)

// MinimumSequence 返回seqs中的最小值，seqs为空时返回def
func MinimumSequence(seqs []*Sequence, def int64) int64 {
	if len(seqs) == 0 {
		return def
	}
	minimum := int64(math.MaxInt64)
	for _, s := range seqs {
		if v := s.Get(); v < minimum {
			minimum = v
		}
	}
	return minimum
}

// sequenceGroup gating序列集合，写时复制
// 读取方直接加载当前快照，不加锁；修改方构造新的切片并通过CAS替换，
// 因此读取方看到的一定是完整的旧集合或完整的新集合
type sequenceGroup struct {
	seqs atomic.Pointer[[]*Sequence]
}

func newSequenceGroup() *sequenceGroup {
	g := &sequenceGroup{}
	empty := make([]*Sequence, 0)
	g.seqs.Store(&empty)
	return g
}

func (g *sequenceGroup) snapshot() []*Sequence {
	return *g.seqs.Load()
}

func (g *sequenceGroup) size() int {
	return len(g.snapshot())
}

// add 追加序列，新序列先设置为当前游标，安装后再以最新游标重设一次，
// 防止安装期间生产端已越过旧游标导致新序列落后于已claim的回绕点
func (g *sequenceGroup) add(cursor *Sequence, added ...*Sequence) {
	if len(added) == 0 {
		return
	}
	var current int64
	for {
		old := g.seqs.Load()
		updated := make([]*Sequence, len(*old), len(*old)+len(added))
		copy(updated, *old)
		current = cursor.Get()
		for _, s := range added {
			s.Set(current)
			updated = append(updated, s)
		}
		if g.seqs.CompareAndSwap(old, &updated) {
			break
		}
	}
	current = cursor.Get()
	for _, s := range added {
		s.Set(current)
	}
}

// remove 移除seq的所有引用，返回seq是否存在
func (g *sequenceGroup) remove(seq *Sequence) bool {
	for {
		old := g.seqs.Load()
		n := 0
		for _, s := range *old {
			if s == seq {
				n++
			}
		}
		if n == 0 {
			return false
		}
		updated := make([]*Sequence, 0, len(*old)-n)
		for _, s := range *old {
			if s != seq {
				updated = append(updated, s)
			}
		}
		if g.seqs.CompareAndSwap(old, &updated) {
			return true
		}
	}
}

// minimum 每次调用都重新读取所有gating序列，不跨循环缓存
func (g *sequenceGroup) minimum(def int64) int64 {
	return MinimumSequence(g.snapshot(), def)
}

// fixedSequenceGroup 不可变的序列组，Get返回组内最小值
// barrier依赖多个上游消费端时作为其dependent sequence
type fixedSequenceGroup []*Sequence

func (f fixedSequenceGroup) Get() int64 {
	return MinimumSequence(f, math.MaxInt64)
}
