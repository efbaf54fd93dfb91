/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import "sync/atomic"

// MultiProducerSequencer 多生产者序号协调器
// 多个g通过CAS竞争共享游标完成claim；由于后claim的序号可能先完成写入，游标本身无法表示某个位置是否已写入，
// 因此每个位置额外维护一个圈数（lap）标记，publish时写入sequence/N，判断可用即比较标记与圈数是否一致
type MultiProducerSequencer struct {
	sequencer
	gatingCache *Sequence // gating最小值的缓存，独立缓存行
	available   []int32   // 每个位置最后一次发布时的圈数，初始为-1
	indexMask   int64     // 用&代替%
	indexShift  uint      // 用>>代替/
}

var _ Sequencer = (*MultiProducerSequencer)(nil)

// NewMultiProducerSequencer 创建多生产者序号协调器，bufferSize必须是2的幂
func NewMultiProducerSequencer(bufferSize int, opts ...Option) *MultiProducerSequencer {
	s := &MultiProducerSequencer{
		sequencer:   newSequencer(MultiProducer, bufferSize, opts...),
		gatingCache: NewInitialSequence(),
		available:   make([]int32, bufferSize),
		indexMask:   int64(bufferSize - 1),
		indexShift:  log2(bufferSize),
	}
	for i := range s.available {
		atomic.StoreInt32(&s.available[i], -1)
	}
	return s
}

func (s *MultiProducerSequencer) HasAvailableCapacity(n int) bool {
	return s.hasAvailableCapacity(n, s.cursor.Get())
}

func (s *MultiProducerSequencer) hasAvailableCapacity(n int, cursorValue int64) bool {
	wrapPoint := cursorValue + int64(n) - int64(s.bufferSize)
	cachedGating := s.gatingCache.Get()
	if wrapPoint > cachedGating || cachedGating > cursorValue {
		minSequence := s.gating.minimum(cursorValue)
		s.gatingCache.Set(minSequence)
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

func (s *MultiProducerSequencer) Next() int64 {
	return s.NextN(1)
}

// NextN CAS循环：读取游标，判断容量，CAS推进游标，失败则重新读取
func (s *MultiProducerSequencer) NextN(n int) int64 {
	s.checkBatch(n)
	for i := 0; ; {
		current := s.cursor.Get()
		next := current + int64(n)
		wrapPoint := next - int64(s.bufferSize)
		cachedGating := s.gatingCache.Get()
		if wrapPoint > cachedGating || cachedGating > current {
			gatingSequence := s.gating.minimum(current)
			if wrapPoint > gatingSequence {
				// 容量不足，等待消费端前进
				spinWait(i)
				i++
				continue
			}
			s.gatingCache.Set(gatingSequence)
		} else if s.cursor.CompareAndSet(current, next) {
			return next
		}
	}
}

func (s *MultiProducerSequencer) TryNext() (int64, error) {
	return s.TryNextN(1)
}

func (s *MultiProducerSequencer) TryNextN(n int) (int64, error) {
	s.checkBatch(n)
	for {
		current := s.cursor.Get()
		next := current + int64(n)
		if !s.hasAvailableCapacity(n, current) {
			return InitialCursorValue, ErrInsufficientCapacity
		}
		if s.cursor.CompareAndSet(current, next) {
			return next, nil
		}
	}
}

func (s *MultiProducerSequencer) RemainingCapacity(gating []*Sequence) int64 {
	return s.remainingCapacity(gating, s.cursor.Get())
}

// Claim 重新初始化：设置共享游标，并按sequence重写每个位置的圈数标记，
// 使不大于sequence的序号均为已发布，之后的序号均未发布；之后无需也不能再 Publish(sequence)
func (s *MultiProducerSequencer) Claim(sequence int64) {
	s.checkClaim(sequence)
	lap := int32(sequence >> s.indexShift)
	last := sequence & s.indexMask
	for i := range s.available {
		// 位置i上不大于sequence的最大序号，在本圈或上一圈
		flag := lap
		if int64(i) > last {
			flag = lap - 1
		}
		atomic.StoreInt32(&s.available[i], flag)
	}
	s.cursor.Set(sequence)
	s.gatingCache.Set(InitialCursorValue)
	s.ws.SignalAllWhenBlocking()
	s.logger.Infof("multi-producer sequencer claimed sequence %d", sequence)
}

// Publish 写入该位置的圈数标记，与其他生产端的发布顺序无关
func (s *MultiProducerSequencer) Publish(sequence int64) {
	s.setAvailable(sequence)
	s.ws.SignalAllWhenBlocking()
}

func (s *MultiProducerSequencer) PublishRange(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		s.setAvailable(seq)
	}
	s.ws.SignalAllWhenBlocking()
}

func (s *MultiProducerSequencer) setAvailable(sequence int64) {
	p, flag := s.slot(sequence)
	if atomic.LoadInt32(p) == flag {
		s.violate("sequence %d published twice", sequence)
	}
	atomic.StoreInt32(p, flag)
}

func (s *MultiProducerSequencer) IsAvailable(sequence int64) bool {
	p, flag := s.slot(sequence)
	return atomic.LoadInt32(p) == flag
}

func (s *MultiProducerSequencer) EnsureAvailable(sequence int64) {
	for i := 0; !s.IsAvailable(sequence); i++ {
		spinWait(i)
	}
}

func (s *MultiProducerSequencer) HighestPublishedSequence(lo, available int64) int64 {
	for seq := lo; seq <= available; seq++ {
		if !s.IsAvailable(seq) {
			return seq - 1
		}
	}
	return available
}

// slot 返回sequence对应位置的标记地址以及其圈数
func (s *MultiProducerSequencer) slot(sequence int64) (*int32, int32) {
	return &s.available[sequence&s.indexMask], int32(sequence >> s.indexShift)
}

func (s *MultiProducerSequencer) NewBarrier(seqs ...*Sequence) SequenceBarrier {
	return newSequenceBarrier(s, &s.sequencer, seqs)
}
