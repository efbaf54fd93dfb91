/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import (
	"sync/atomic"

	"github.com/bruceshao/lockfree/internal/logging"
)

// SequenceBarrier 消费端屏障，等待其依赖的序列（生产端游标或上游消费端）推进到指定序号
type SequenceBarrier interface {
	// WaitFor 等待sequence可用，返回当前可处理的最大序号，该值不小于sequence
	// 被 Alert 时返回 ErrAlerted，等待策略超时时返回 ErrTimeout
	WaitFor(sequence int64) (int64, error)

	// Cursor 依赖序列当前的值
	Cursor() int64

	IsAlerted() bool

	// Alert 通知所有正在以及将要等待的g退出，直到 ClearAlert
	Alert()

	ClearAlert()

	// CheckAlert 已被 Alert 时返回 ErrAlerted
	CheckAlert() error
}

// sequenceBarrier 两种状态：等待中（alerted=false）以及已告警（alerted=true）
type sequenceBarrier struct {
	seqer     Sequencer
	ws        WaitStrategy
	cursor    *Sequence
	dependent SequenceReader
	logger    logging.Logger
	alerted   atomic.Bool
}

func newSequenceBarrier(seqer Sequencer, shared *sequencer, dependents []*Sequence) *sequenceBarrier {
	b := &sequenceBarrier{
		seqer:  seqer,
		ws:     shared.ws,
		cursor: shared.cursor,
		logger: shared.logger,
	}
	switch len(dependents) {
	case 0:
		b.dependent = shared.cursor
	case 1:
		b.dependent = dependents[0]
	default:
		b.dependent = fixedSequenceGroup(append([]*Sequence(nil), dependents...))
	}
	return b
}

func (b *sequenceBarrier) WaitFor(sequence int64) (int64, error) {
	for i := 0; ; i++ {
		if err := b.CheckAlert(); err != nil {
			return InitialCursorValue, err
		}
		available := b.dependent.Get()
		if available < sequence {
			var err error
			if available, err = b.ws.WaitFor(sequence, b.cursor, b.dependent, b); err != nil {
				return available, err
			}
			if available < sequence {
				continue
			}
		}
		// 多生产者时游标推进与写入完成是解耦的，只返回连续已发布的部分
		highest := b.seqer.HighestPublishedSequence(sequence, available)
		if highest >= sequence {
			return highest, nil
		}
		spinWait(i)
	}
}

func (b *sequenceBarrier) Cursor() int64 {
	return b.dependent.Get()
}

func (b *sequenceBarrier) IsAlerted() bool {
	return b.alerted.Load()
}

// Alert 设置告警后唤醒所有阻塞在等待策略上的g
func (b *sequenceBarrier) Alert() {
	if b.alerted.CompareAndSwap(false, true) {
		b.logger.Debugf("barrier alerted, dependent sequence: %d", b.dependent.Get())
	}
	b.ws.SignalAllWhenBlocking()
}

func (b *sequenceBarrier) ClearAlert() {
	b.alerted.Store(false)
}

func (b *sequenceBarrier) CheckAlert() error {
	if b.alerted.Load() {
		return ErrAlerted
	}
	return nil
}
