/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

// Package logging 为序号协调器提供日志能力，默认实现基于 go.uber.org/zap。
//
// 环境变量 LOCKFREE_LOGGING_LEVEL 指定日志级别（zapcore.Level 对应的整数，-1 为 Debug，默认 Info），
// 环境变量 LOCKFREE_LOGGING_FILE 指定日志文件路径，设置后日志将通过 lumberjack 按大小滚动写入该文件。
//
// 日志只会在热路径之外输出：构造、gating 序列增删、claim 重置、barrier 告警以及前置条件违反。
package logging

import (
	"errors"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	envLevel = "LOCKFREE_LOGGING_LEVEL"
	envFile  = "LOCKFREE_LOGGING_FILE"
	prefix   = "[lockfree]"
)

// Flusher 刷新缓冲中的日志，通常在进程退出前调用
type Flusher = func() error

// Level zapcore.Level 的别名
type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

// Logger 日志接口，*zap.SugaredLogger 天然实现了该接口，使用方也可以自定义实现
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var (
	defaultLogger       Logger
	defaultLoggingLevel = InfoLevel
	defaultFlusher      Flusher
	setupOnce           sync.Once
)

func init() {
	if lvl := os.Getenv(envLevel); len(lvl) > 0 {
		l, err := strconv.ParseInt(lvl, 10, 8)
		if err != nil {
			panic("invalid " + envLevel + ", " + err.Error())
		}
		defaultLoggingLevel = Level(l)
	}

	if fileName := os.Getenv(envFile); len(fileName) > 0 {
		var err error
		defaultLogger, defaultFlusher, err = CreateLoggerAsLocalFile(fileName, defaultLoggingLevel)
		if err != nil {
			panic("invalid " + envFile + ", " + err.Error())
		}
		return
	}
	core := zapcore.NewCore(newEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stdout), defaultLoggingLevel)
	zapLogger := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	defaultLogger, defaultFlusher = zapLogger.Sugar(), zapLogger.Sync
}

// prefixEncoder 在每条日志前追加固定前缀，便于和业务日志区分
type prefixEncoder struct {
	zapcore.Encoder

	prefix  string
	bufPool buffer.Pool
}

func (e *prefixEncoder) Clone() zapcore.Encoder {
	return &prefixEncoder{Encoder: e.Encoder.Clone(), prefix: e.prefix, bufPool: e.bufPool}
}

func (e *prefixEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	logEntry, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}
	defer logEntry.Free()

	buf := e.bufPool.Get()
	buf.AppendString(e.prefix)
	buf.AppendString(" ")
	if _, err = buf.Write(logEntry.Bytes()); err != nil {
		buf.Free()
		return nil, err
	}
	return buf, nil
}

func newEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return &prefixEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		prefix:  prefix,
		bufPool: buffer.NewPool(),
	}
}

// GetDefaultLogger 返回默认的日志对象
func GetDefaultLogger() Logger {
	return defaultLogger
}

// GetDefaultFlusher 返回默认日志对象对应的 Flusher
func GetDefaultFlusher() Flusher {
	return defaultFlusher
}

// SetDefaultLoggerAndFlusher 替换默认的日志对象，仅第一次调用生效
func SetDefaultLoggerAndFlusher(logger Logger, flusher Flusher) {
	setupOnce.Do(func() {
		defaultLogger, defaultFlusher = logger, flusher
	})
}

// LogLevel 返回默认日志级别
func LogLevel() string {
	return defaultLoggingLevel.String()
}

// CreateLoggerAsLocalFile 创建写入本地文件的日志对象，文件按大小滚动
func CreateLoggerAsLocalFile(localFilePath string, logLevel Level) (logger Logger, flush Flusher, err error) {
	if len(localFilePath) == 0 {
		return nil, nil, errors.New("invalid local logger path")
	}

	// lumberjack.Logger 本身是并发安全的
	lumberJackLogger := &lumberjack.Logger{
		Filename:   localFilePath,
		MaxSize:    100, // megabytes
		MaxBackups: 2,
		MaxAge:     15, // days
	}

	levelEnabler := zap.LevelEnablerFunc(func(level Level) bool {
		return level >= logLevel
	})
	core := zapcore.NewCore(newEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(lumberJackLogger), levelEnabler)
	zapLogger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(ErrorLevel))
	return zapLogger.Sugar(), zapLogger.Sync, nil
}

// NewNop 返回丢弃所有输出的日志对象，测试中常用
func NewNop() Logger {
	return zap.NewNop().Sugar()
}

// Cleanup 刷新默认日志对象
func Cleanup() {
	if defaultFlusher != nil {
		_ = defaultFlusher()
	}
}
