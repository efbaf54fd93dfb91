/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
)

// P个g各claim K次，得到的序号恰好是{0..P*K-1}，不重复也不遗漏
func TestMultiProducerNoDoubleClaim(t *testing.T) {
	const (
		producers = 8
		perGo     = 10000
	)
	s := NewMultiProducerSequencer(1024, quiet()...)
	claims := make([]int32, producers*perGo)

	pool, err := ants.NewPool(producers)
	require.NoError(t, err)
	defer pool.Release()

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			for j := 0; j < perGo; j++ {
				atomic.AddInt32(&claims[s.Next()], 1)
			}
		}))
	}
	wg.Wait()

	for seq, n := range claims {
		if n != 1 {
			t.Fatalf("sequence %d claimed %d times", seq, n)
		}
	}
	assert.Equal(t, int64(producers*perGo-1), s.Cursor())
}

// 随机批量claim，同样不重复也不遗漏
func TestMultiProducerBatchClaim(t *testing.T) {
	const (
		producers = 4
		perGo     = 2000
	)
	s := NewMultiProducerSequencer(64, quiet()...)
	claims := make([]int32, producers*perGo*4)

	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGo; j++ {
				n := int(fastrand.Uint32n(4)) + 1
				hi := s.NextN(n)
				for seq := hi - int64(n) + 1; seq <= hi; seq++ {
					atomic.AddInt32(&claims[seq], 1)
				}
			}
		}()
	}
	wg.Wait()

	cursor := s.Cursor()
	for seq := int64(0); seq <= cursor; seq++ {
		require.Equal(t, int32(1), claims[seq], "sequence %d", seq)
	}
	for seq := cursor + 1; seq < int64(len(claims)); seq++ {
		require.Equal(t, int32(0), claims[seq], "sequence %d", seq)
	}
}

// 乱序发布时每个序号独立可见，HighestPublishedSequence 只返回连续发布的部分
func TestMultiProducerOutOfOrderPublish(t *testing.T) {
	s := NewMultiProducerSequencer(8, quiet()...)
	assert.Equal(t, int64(2), s.NextN(3))

	s.Publish(2)
	assert.True(t, s.IsAvailable(2))
	assert.False(t, s.IsAvailable(0))
	assert.False(t, s.IsAvailable(1))
	assert.Equal(t, int64(-1), s.HighestPublishedSequence(0, 2))

	s.Publish(0)
	assert.Equal(t, int64(0), s.HighestPublishedSequence(0, 2))

	s.Publish(1)
	assert.Equal(t, int64(2), s.HighestPublishedSequence(0, 2))
	s.EnsureAvailable(1)
}

// 圈数标记在回绕后区分同一位置的不同序号
func TestMultiProducerLapTags(t *testing.T) {
	s := NewMultiProducerSequencer(4, quiet()...)
	for i := int64(0); i < 10; i++ {
		require.Equal(t, i, s.Next())
		s.Publish(i)
	}
	assert.True(t, s.IsAvailable(9))
	assert.True(t, s.IsAvailable(8))
	// 9与5、1共用位置1
	assert.False(t, s.IsAvailable(5))
	assert.False(t, s.IsAvailable(1))
	assert.False(t, s.IsAvailable(10))

	assert.Panics(t, func() { s.Publish(9) })

	s.PublishRange(s.Next(), s.Next())
	assert.True(t, s.IsAvailable(10))
	assert.True(t, s.IsAvailable(11))
}

func TestMultiProducerTryNextInsufficientCapacity(t *testing.T) {
	s := NewMultiProducerSequencer(4, quiet()...)
	gating := NewInitialSequence()
	s.AddGatingSequences(gating)

	for i := int64(0); i < 4; i++ {
		seq, err := s.TryNext()
		require.NoError(t, err)
		require.Equal(t, i, seq)
		s.Publish(seq)
	}
	seq, err := s.TryNext()
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	assert.Equal(t, InitialCursorValue, seq)
	_, err = s.TryNextN(2)
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	assert.Equal(t, int64(0), s.RemainingCapacity(nil))

	claimed := make(chan int64, 1)
	go func() {
		claimed <- s.Next()
	}()
	select {
	case <-claimed:
		t.Fatal("next should block while buffer is full")
	case <-time.After(50 * time.Millisecond):
	}
	gating.Set(0)
	select {
	case seq := <-claimed:
		assert.Equal(t, int64(4), seq)
	case <-time.After(time.Second):
		t.Fatal("next is still blocked after gating sequence advanced")
	}
}

func TestMultiProducerGatingDynamics(t *testing.T) {
	s := NewMultiProducerSequencer(4, quiet()...)
	slow, fast := NewInitialSequence(), NewInitialSequence()
	s.AddGatingSequences(slow, fast)
	s.PublishRange(0, s.NextN(4))
	fast.Set(3)
	assert.Equal(t, InitialCursorValue, s.MinimumSequence())

	claimed := make(chan int64, 1)
	go func() {
		claimed <- s.Next()
	}()
	select {
	case <-claimed:
		t.Fatal("next should block while the slow gating sequence is behind")
	case <-time.After(50 * time.Millisecond):
	}

	assert.True(t, s.RemoveSequence(slow))
	select {
	case seq := <-claimed:
		assert.Equal(t, int64(4), seq)
	case <-time.After(time.Second):
		t.Fatal("next is still blocked after gating sequence removed")
	}
	assert.Equal(t, int64(3), s.MinimumSequence())
}

func TestMultiProducerClaim(t *testing.T) {
	s := NewMultiProducerSequencer(8, quiet()...)
	s.Claim(15)
	assert.Equal(t, int64(15), s.Cursor())
	for seq := int64(8); seq <= 15; seq++ {
		assert.True(t, s.IsAvailable(seq), "sequence %d", seq)
	}
	assert.False(t, s.IsAvailable(16))

	available, err := s.NewBarrier().WaitFor(8)
	require.NoError(t, err)
	assert.Equal(t, int64(15), available)

	seq := s.Next()
	assert.Equal(t, int64(16), seq)
	s.Publish(seq)
	assert.True(t, s.IsAvailable(16))

	s.AddGatingSequences(NewInitialSequence())
	assert.Panics(t, func() { s.Claim(0) })
}

// Claim 回退到更早的位置后，圈数标记与新游标一致
func TestMultiProducerClaimBackwards(t *testing.T) {
	s := NewMultiProducerSequencer(8, quiet()...)
	for i := 0; i < 20; i++ {
		s.Publish(s.Next())
	}

	s.Claim(5)
	assert.Equal(t, int64(5), s.Cursor())
	for seq := int64(0); seq <= 5; seq++ {
		assert.True(t, s.IsAvailable(seq), "sequence %d", seq)
	}
	for seq := int64(6); seq < 20; seq++ {
		assert.False(t, s.IsAvailable(seq), "sequence %d", seq)
	}
	assert.Equal(t, int64(5), s.HighestPublishedSequence(0, 5))
	assert.Panics(t, func() { s.Publish(5) })

	b := s.NewBarrier()
	available, err := b.WaitFor(0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), available)

	hi := s.NextN(4)
	assert.Equal(t, int64(9), hi)
	s.PublishRange(6, hi)
	available, err = b.WaitFor(6)
	require.NoError(t, err)
	assert.Equal(t, int64(9), available)
	assert.Equal(t, int64(9), s.HighestPublishedSequence(6, 9))
}

// 后面的序号已发布但当前序号未发布时，EnsureAvailable 仍然等待
func TestMultiProducerEnsureAvailableBlocks(t *testing.T) {
	s := NewMultiProducerSequencer(8, quiet()...)
	assert.Equal(t, int64(2), s.NextN(3))
	s.Publish(0)
	s.Publish(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.EnsureAvailable(1)
	}()
	select {
	case <-done:
		t.Fatal("ensure available returned before sequence 1 was published")
	case <-time.After(20 * time.Millisecond):
	}

	s.Publish(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ensure available is still blocked after publish")
	}
}

// 多生产者并发写入时，claim - min(gating) 始终不超过容量
func TestMultiProducerCapacityInvariant(t *testing.T) {
	const (
		size      = 32
		producers = 4
		perGo     = 5000
		total     = producers * perGo
	)
	s := NewMultiProducerSequencer(size, quiet()...)
	consumer := NewInitialSequence()
	s.AddGatingSequences(consumer)
	barrier := s.NewBarrier()

	var (
		violations atomic.Int64
		wg         sync.WaitGroup
		done       = make(chan struct{})
	)
	go func() {
		defer close(done)
		for next := int64(0); next < total; {
			available, err := barrier.WaitFor(next)
			if err != nil {
				t.Error(err)
				return
			}
			for seq := next; seq <= available; seq++ {
				if !s.IsAvailable(seq) {
					t.Errorf("sequence %d returned by barrier but not published", seq)
				}
			}
			consumer.Set(available)
			next = available + 1
		}
	}()

	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGo; j++ {
				seq := s.Next()
				if seq-consumer.Get() > size {
					violations.Add(1)
				}
				s.Publish(seq)
			}
		}()
	}
	wg.Wait()
	<-done
	assert.Equal(t, int64(0), violations.Load())
	assert.Equal(t, int64(total-1), consumer.Get())
}
