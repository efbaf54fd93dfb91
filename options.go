/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import "github.com/bruceshao/lockfree/internal/logging"

// ProducerType 生产端类型，构造时确定，运行期间不可变更
type ProducerType int

const (
	// SingleProducer 只有一个g调用Next/TryNext，claim不需要CAS
	SingleProducer ProducerType = iota
	// MultiProducer 多个g并发claim，通过CAS竞争游标
	MultiProducer
)

func (p ProducerType) String() string {
	switch p {
	case SingleProducer:
		return "single-producer"
	case MultiProducer:
		return "multi-producer"
	default:
		return "unknown"
	}
}

// Option 构造序号协调器时的可选配置
type Option func(opts *Options)

// Options 序号协调器的配置
type Options struct {
	// WaitStrategy barrier等待以及publish通知使用的等待策略，默认为 YieldingWaitStrategy
	WaitStrategy WaitStrategy

	// Logger 日志对象，默认使用 logging.GetDefaultLogger()
	Logger logging.Logger
}

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	if opts.WaitStrategy == nil {
		opts.WaitStrategy = NewYieldingWaitStrategy()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
	return opts
}

// WithOptions 整体设置配置
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithWaitStrategy 设置等待策略
func WithWaitStrategy(ws WaitStrategy) Option {
	return func(opts *Options) {
		opts.WaitStrategy = ws
	}
}

// WithLogger 设置日志对象
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
