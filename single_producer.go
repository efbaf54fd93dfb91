/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// SingleProducerSequencer 单生产者序号协调器
// 只允许一个g调用 Next/TryNext/Publish，因此claim不需要CAS，nextValue和cachedValue均为生产端私有的普通字段，
// 通过填充与游标所在缓存行隔离；claimed是nextValue的原子副本，供其他g的容量查询读取
type SingleProducerSequencer struct {
	sequencer
	_           cpu.CacheLinePad
	nextValue   int64 // 已claim的最大序号
	cachedValue int64 // 上一次读取到的gating最小值
	claimed     atomic.Int64
	_           cpu.CacheLinePad
}

var _ Sequencer = (*SingleProducerSequencer)(nil)

// NewSingleProducerSequencer 创建单生产者序号协调器，bufferSize必须是2的幂
func NewSingleProducerSequencer(bufferSize int, opts ...Option) *SingleProducerSequencer {
	s := &SingleProducerSequencer{
		sequencer:   newSequencer(SingleProducer, bufferSize, opts...),
		nextValue:   InitialCursorValue,
		cachedValue: InitialCursorValue,
	}
	s.claimed.Store(InitialCursorValue)
	return s
}

// HasAvailableCapacity 可由任意g调用，不读写生产端私有字段，结果仅供参考
func (s *SingleProducerSequencer) HasAvailableCapacity(n int) bool {
	nextValue := s.claimed.Load()
	return nextValue+int64(n)-int64(s.bufferSize) <= s.gating.minimum(nextValue)
}

// hasAvailableCapacity 生产端使用，会更新cachedValue
func (s *SingleProducerSequencer) hasAvailableCapacity(n int) bool {
	nextValue := s.nextValue
	wrapPoint := nextValue + int64(n) - int64(s.bufferSize)
	cachedGating := s.cachedValue
	if wrapPoint > cachedGating || cachedGating > nextValue {
		minSequence := s.gating.minimum(nextValue)
		s.cachedValue = minSequence
		if wrapPoint > minSequence {
			return false
		}
	}
	return true
}

func (s *SingleProducerSequencer) Next() int64 {
	return s.NextN(1)
}

// NextN 先用缓存的gating最小值判断，不足时每次循环都重新读取所有gating序列
func (s *SingleProducerSequencer) NextN(n int) int64 {
	s.checkBatch(n)
	nextValue := s.nextValue
	nextSequence := nextValue + int64(n)
	wrapPoint := nextSequence - int64(s.bufferSize)
	cachedGating := s.cachedValue
	if wrapPoint > cachedGating || cachedGating > nextValue {
		var minSequence int64
		for i := 0; ; i++ {
			minSequence = s.gating.minimum(nextValue)
			if wrapPoint <= minSequence {
				break
			}
			spinWait(i)
		}
		s.cachedValue = minSequence
	}
	s.nextValue = nextSequence
	s.claimed.Store(nextSequence)
	return nextSequence
}

func (s *SingleProducerSequencer) TryNext() (int64, error) {
	return s.TryNextN(1)
}

func (s *SingleProducerSequencer) TryNextN(n int) (int64, error) {
	s.checkBatch(n)
	if !s.hasAvailableCapacity(n) {
		return InitialCursorValue, ErrInsufficientCapacity
	}
	s.nextValue += int64(n)
	s.claimed.Store(s.nextValue)
	return s.nextValue, nil
}

func (s *SingleProducerSequencer) RemainingCapacity(gating []*Sequence) int64 {
	return s.remainingCapacity(gating, s.claimed.Load())
}

// Claim 重新初始化：claim游标与发布游标均设置为sequence，不大于sequence的序号即视为已发布，
// 之后无需也不能再 Publish(sequence)，下一次claim从sequence+1开始
func (s *SingleProducerSequencer) Claim(sequence int64) {
	s.checkClaim(sequence)
	s.nextValue = sequence
	s.claimed.Store(sequence)
	s.cachedValue = InitialCursorValue
	s.cursor.Set(sequence)
	s.ws.SignalAllWhenBlocking()
	s.logger.Infof("single-producer sequencer claimed sequence %d", sequence)
}

// Publish 由于claim严格有序，一次原子写入游标即可同时完成发布和可用性通知
func (s *SingleProducerSequencer) Publish(sequence int64) {
	if sequence <= s.cursor.Get() {
		s.violate("sequence %d published twice, cursor: %d", sequence, s.cursor.Get())
	}
	s.cursor.Set(sequence)
	s.ws.SignalAllWhenBlocking()
}

func (s *SingleProducerSequencer) PublishRange(_, hi int64) {
	s.Publish(hi)
}

// IsAvailable 发布s意味着所有不大于s的序号均已发布
func (s *SingleProducerSequencer) IsAvailable(sequence int64) bool {
	return sequence <= s.cursor.Get()
}

func (s *SingleProducerSequencer) EnsureAvailable(sequence int64) {
	for i := 0; !s.IsAvailable(sequence); i++ {
		spinWait(i)
	}
}

func (s *SingleProducerSequencer) HighestPublishedSequence(_, available int64) int64 {
	return available
}

func (s *SingleProducerSequencer) NewBarrier(seqs ...*Sequence) SequenceBarrier {
	return newSequenceBarrier(s, &s.sequencer, seqs)
}
