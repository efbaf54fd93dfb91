/*
 * Copyright (C) THL A29 Limited, a Tencent company. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 *
 */

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLoggerAsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockfree.log")
	logger, flush, err := CreateLoggerAsLocalFile(path, InfoLevel)
	require.NoError(t, err)

	logger.Debugf("dropped %d", 1)
	logger.Infof("gating sequences: %d", 2)
	require.NoError(t, flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[lockfree]")
	assert.Contains(t, string(data), "gating sequences: 2")
	assert.NotContains(t, string(data), "dropped")
}

func TestCreateLoggerAsLocalFileInvalidPath(t *testing.T) {
	_, _, err := CreateLoggerAsLocalFile("", InfoLevel)
	assert.Error(t, err)
}

func TestDefaultLogger(t *testing.T) {
	assert.NotNil(t, GetDefaultLogger())
	assert.NotNil(t, GetDefaultFlusher())
	assert.Equal(t, InfoLevel.String(), LogLevel())
	NewNop().Errorf("discarded %v", "error")
}
