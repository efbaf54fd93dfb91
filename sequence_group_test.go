/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimumSequence(t *testing.T) {
	assert.Equal(t, int64(7), MinimumSequence(nil, 7))
	seqs := []*Sequence{NewSequence(5), NewSequence(3), NewSequence(9)}
	assert.Equal(t, int64(3), MinimumSequence(seqs, 100))
}

func TestSequenceGroupAddRemove(t *testing.T) {
	g := newSequenceGroup()
	cursor := NewSequence(42)
	assert.Equal(t, int64(42), g.minimum(42))

	a, b := NewSequence(0), NewSequence(100)
	g.add(cursor, a, b)
	assert.Equal(t, 2, g.size())
	// 新加入的序列被设置为当前游标
	assert.Equal(t, int64(42), a.Get())
	assert.Equal(t, int64(42), b.Get())

	a.Set(50)
	assert.Equal(t, int64(42), g.minimum(math.MaxInt64))

	assert.True(t, g.remove(b))
	assert.False(t, g.remove(b))
	assert.Equal(t, int64(50), g.minimum(math.MaxInt64))
	assert.True(t, g.remove(a))
	assert.Equal(t, 0, g.size())
}

func TestSequenceGroupRemoveDuplicates(t *testing.T) {
	g := newSequenceGroup()
	cursor := NewInitialSequence()
	a := NewInitialSequence()
	g.add(cursor, a, a)
	assert.Equal(t, 2, g.size())
	assert.True(t, g.remove(a))
	assert.Equal(t, 0, g.size())
}

// 并发添加时读取方看到的一定是完整的集合：成对加入的序列要么都在，要么都不在
func TestSequenceGroupSnapshot(t *testing.T) {
	var (
		g      = newSequenceGroup()
		cursor = NewInitialSequence()
		pairs  = 64
		stop   atomic.Bool
		wg     sync.WaitGroup
		broken atomic.Int64
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			snap := g.snapshot()
			if len(snap)%2 != 0 {
				broken.Add(1)
			}
		}
	}()
	for i := 0; i < pairs; i++ {
		a, b := NewInitialSequence(), NewInitialSequence()
		g.add(cursor, a, b)
	}
	stop.Store(true)
	wg.Wait()
	assert.Equal(t, int64(0), broken.Load())
	assert.Equal(t, 2*pairs, g.size())
}

func TestFixedSequenceGroup(t *testing.T) {
	f := fixedSequenceGroup{NewSequence(3), NewSequence(1), NewSequence(2)}
	assert.Equal(t, int64(1), f.Get())
	f[1].Set(10)
	assert.Equal(t, int64(2), f.Get())
}
