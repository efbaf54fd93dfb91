/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package lockfree

import "errors"

var (
	// ErrInsufficientCapacity TryNext/TryNextN 在调用瞬间没有足够容量时返回，调用方可稍后重试或丢弃
	ErrInsufficientCapacity = errors.New("lockfree: insufficient capacity")
	// ErrAlerted barrier 已被 Alert，消费端应当停止处理并退出循环
	ErrAlerted = errors.New("lockfree: barrier alerted")
	// ErrTimeout 等待策略在指定时间内未等到目标序号
	ErrTimeout = errors.New("lockfree: wait timeout")
)
