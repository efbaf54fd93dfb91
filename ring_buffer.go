/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

// RingBuffer 具体对象的存放区域，通过数组（定长切片）实现环状数据结构
// 其中元素为具体对象，非指针，这样可以一次性进行内存申请；所有的协调工作都委托给 Sequencer
//
// 生产端：Next/TryNext claim序号 -> Get(seq)写入 -> Publish(seq)
// 消费端：barrier.WaitFor(next) -> 读取[next, available] -> 推进自身Sequence（即gating序列）
type RingBuffer[T any] struct {
	seqer Sequencer
	buf   []T
	mask  int64 // 用于使用&代替%（取余）运算提高性能
}

// NewRingBuffer 基于已有的序号协调器创建RingBuffer
func NewRingBuffer[T any](seqer Sequencer) *RingBuffer[T] {
	return &RingBuffer[T]{
		seqer: seqer,
		buf:   make([]T, seqer.BufferSize()),
		mask:  int64(seqer.BufferSize() - 1),
	}
}

// NewSingleProducerRingBuffer 创建单生产者RingBuffer，capacity必须是2的幂
func NewSingleProducerRingBuffer[T any](capacity int, opts ...Option) *RingBuffer[T] {
	return NewRingBuffer[T](NewSingleProducerSequencer(capacity, opts...))
}

// NewMultiProducerRingBuffer 创建多生产者RingBuffer，capacity必须是2的幂
func NewMultiProducerRingBuffer[T any](capacity int, opts ...Option) *RingBuffer[T] {
	return NewRingBuffer[T](NewMultiProducerSequencer(capacity, opts...))
}

// Get 返回sequence对应位置的元素指针，写入前必须先claim，读取前必须确认已发布
func (r *RingBuffer[T]) Get(sequence int64) *T {
	return &r.buf[sequence&r.mask]
}

func (r *RingBuffer[T]) Next() int64 {
	return r.seqer.Next()
}

func (r *RingBuffer[T]) NextN(n int) int64 {
	return r.seqer.NextN(n)
}

func (r *RingBuffer[T]) TryNext() (int64, error) {
	return r.seqer.TryNext()
}

func (r *RingBuffer[T]) TryNextN(n int) (int64, error) {
	return r.seqer.TryNextN(n)
}

func (r *RingBuffer[T]) Publish(sequence int64) {
	r.seqer.Publish(sequence)
}

func (r *RingBuffer[T]) PublishRange(lo, hi int64) {
	r.seqer.PublishRange(lo, hi)
}

// Write 对象写入核心逻辑：claim序号，写入对应位置，然后发布；容量不足时等待
func (r *RingBuffer[T]) Write(v T) int64 {
	seq := r.seqer.Next()
	r.buf[seq&r.mask] = v
	r.seqer.Publish(seq)
	return seq
}

// TryWrite 同 Write，容量不足时返回 ErrInsufficientCapacity，对象不会被写入
func (r *RingBuffer[T]) TryWrite(v T) (int64, error) {
	seq, err := r.seqer.TryNext()
	if err != nil {
		return seq, err
	}
	r.buf[seq&r.mask] = v
	r.seqer.Publish(seq)
	return seq, nil
}

// WriteWindow 当前可写入的窗口大小
// 由于执行时不加锁，所以该结果是不可靠的，仅用于在并发很高的情况下进行丢弃判断
func (r *RingBuffer[T]) WriteWindow() int64 {
	return r.seqer.RemainingCapacity(nil)
}

func (r *RingBuffer[T]) IsAvailable(sequence int64) bool {
	return r.seqer.IsAvailable(sequence)
}

func (r *RingBuffer[T]) NewBarrier(seqs ...*Sequence) SequenceBarrier {
	return r.seqer.NewBarrier(seqs...)
}

func (r *RingBuffer[T]) AddGatingSequences(seqs ...*Sequence) {
	r.seqer.AddGatingSequences(seqs...)
}

func (r *RingBuffer[T]) RemoveGatingSequence(seq *Sequence) bool {
	return r.seqer.RemoveSequence(seq)
}

func (r *RingBuffer[T]) MinimumGatingSequence() int64 {
	return r.seqer.MinimumSequence()
}

func (r *RingBuffer[T]) Cursor() int64 {
	return r.seqer.Cursor()
}

func (r *RingBuffer[T]) BufferSize() int {
	return r.seqer.BufferSize()
}

// Sequencer 返回底层的序号协调器
func (r *RingBuffer[T]) Sequencer() Sequencer {
	return r.seqer
}
