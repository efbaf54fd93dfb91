/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"fmt"

	"github.com/bruceshao/lockfree/internal/logging"
)

// Sequencer 序号协调器，负责生产端claim/publish序号，同时跟踪gating序列，保证生产端不会覆盖未被消费的位置
// 有单生产者和多生产者两种实现，构造时选定
type Sequencer interface {
	// BufferSize 容量N，构造后不再变化
	BufferSize() int

	// Cursor 当前游标的值
	Cursor() int64

	// HasAvailableCapacity 是否还有n个可claim的位置，并发情况下结果仅供参考
	HasAvailableCapacity(n int) bool

	// Next claim下一个序号，容量不足时自旋等待，直到gating序列前进
	// 没有任何消费端前进时会一直阻塞，这是背压而不是错误
	Next() int64

	// NextN 一次claim n个序号，返回其中最大的序号
	NextN(n int) int64

	// TryNext 同 Next，但容量不足时立即返回 ErrInsufficientCapacity
	TryNext() (int64, error)

	// TryNextN 同 NextN，但容量不足时立即返回 ErrInsufficientCapacity
	TryNextN(n int) (int64, error)

	// RemainingCapacity 剩余容量 N - (cursor - min(gating))，gating为nil时使用已注册的gating序列
	RemainingCapacity(gating []*Sequence) int64

	// Claim 强制将claim游标设置为sequence，仅用于初始化或重置
	// 必须在任何gating序列注册之前、且没有生产端并发调用 Next 时调用，否则panic或行为未定义
	Claim(sequence int64)

	// Publish 发布序号，之前对该位置的所有写入对于随后观察到该序号可用的消费端均可见
	Publish(sequence int64)

	// PublishRange 批量发布[lo, hi]
	PublishRange(lo, hi int64)

	// IsAvailable 序号是否已发布，非阻塞
	IsAvailable(sequence int64) bool

	// EnsureAvailable 自旋直到序号已发布
	EnsureAvailable(sequence int64)

	// HighestPublishedSequence 返回[lo, available]中从lo开始连续已发布的最大序号，lo未发布时返回lo-1
	HighestPublishedSequence(lo, available int64) int64

	// AddGatingSequences 注册gating序列，新序列会被设置为当前游标
	AddGatingSequences(seqs ...*Sequence)

	// RemoveSequence 移除gating序列，返回其是否存在
	RemoveSequence(seq *Sequence) bool

	// MinimumSequence gating序列的最小值，没有gating序列时返回游标
	MinimumSequence() int64

	// NewBarrier 创建跟踪seqs的barrier，seqs为空时跟踪生产端游标
	NewBarrier(seqs ...*Sequence) SequenceBarrier
}

// NewSequencer 根据生产端类型创建对应的序号协调器
func NewSequencer(pt ProducerType, bufferSize int, opts ...Option) Sequencer {
	switch pt {
	case SingleProducer:
		return NewSingleProducerSequencer(bufferSize, opts...)
	case MultiProducer:
		return NewMultiProducerSequencer(bufferSize, opts...)
	default:
		panic(fmt.Sprintf("lockfree: unknown producer type %d", pt))
	}
}

// sequencer 两种实现共享的状态：容量、等待策略、游标以及gating序列集合
type sequencer struct {
	bufferSize int
	ws         WaitStrategy
	cursor     *Sequence
	gating     *sequenceGroup
	logger     logging.Logger
}

func newSequencer(pt ProducerType, bufferSize int, opts ...Option) sequencer {
	assertBufferSize(bufferSize)
	options := loadOptions(opts...)
	options.Logger.Debugf("create %s sequencer, buffer size: %d, wait strategy: %T", pt, bufferSize, options.WaitStrategy)
	return sequencer{
		bufferSize: bufferSize,
		ws:         options.WaitStrategy,
		cursor:     NewInitialSequence(),
		gating:     newSequenceGroup(),
		logger:     options.Logger,
	}
}

func (s *sequencer) BufferSize() int {
	return s.bufferSize
}

func (s *sequencer) Cursor() int64 {
	return s.cursor.Get()
}

func (s *sequencer) AddGatingSequences(seqs ...*Sequence) {
	s.gating.add(s.cursor, seqs...)
	s.logger.Debugf("add %d gating sequence(s), total: %d", len(seqs), s.gating.size())
}

func (s *sequencer) RemoveSequence(seq *Sequence) bool {
	ok := s.gating.remove(seq)
	s.logger.Debugf("remove gating sequence, found: %v, total: %d", ok, s.gating.size())
	return ok
}

func (s *sequencer) MinimumSequence() int64 {
	return s.gating.minimum(s.cursor.Get())
}

// checkBatch n必须在[1, N]之间
func (s *sequencer) checkBatch(n int) {
	if n < 1 || n > s.bufferSize {
		s.violate("n must be > 0 and <= %d, got %d", s.bufferSize, n)
	}
}

// checkClaim Claim 只能在消费端注册前调用
func (s *sequencer) checkClaim(sequence int64) {
	if n := s.gating.size(); n > 0 {
		s.violate("claim(%d) called after %d gating sequence(s) attached", sequence, n)
	}
}

// violate 前置条件违反属于编程错误，记录日志后直接panic
func (s *sequencer) violate(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.logger.Errorf("precondition violated: %s", msg)
	panic("lockfree: " + msg)
}

func (s *sequencer) remainingCapacity(gating []*Sequence, produced int64) int64 {
	var consumed int64
	if gating == nil {
		consumed = s.gating.minimum(produced)
	} else {
		consumed = MinimumSequence(gating, produced)
	}
	return int64(s.bufferSize) - (produced - consumed)
}
