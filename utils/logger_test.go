/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerIsCachedByName(t *testing.T) {
	a := NewLogger("cache-test")
	b := NewLogger("cache-test")
	assert.Same(t, a, b)
	assert.NotSame(t, a, NewLogger("cache-test-other"))
}

func TestNamedFormatterAddsLoggerField(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("format-test")
	l.SetOutput(&buf)
	l.SetFormatter(&namedFormatter{name: "format-test", next: newFormatter("json")})

	entry := l.WithField("kind", "duplicate_key")
	entry.Warn("insert failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "format-test", line["logger"])
	assert.Equal(t, "duplicate_key", line["kind"])
	assert.Equal(t, "insert failed", line["msg"])
	// The caller's entry is not modified.
	assert.NotContains(t, entry.Data, "logger")
}

func TestSetLoggerLevel(t *testing.T) {
	l := NewLogger("level-test")
	assert.True(t, SetLoggerLevel("level-test", "error"))
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())
	assert.False(t, SetLoggerLevel("never-created", "debug"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel(" DEBUG "))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("verbose"))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("EXEMPLAR_TEST_FLAG", "true")
	t.Setenv("EXEMPLAR_TEST_BROKEN", "maybe")
	assert.True(t, EnvDefaultBool("EXEMPLAR_TEST_FLAG", false))
	assert.False(t, EnvDefaultBool("EXEMPLAR_TEST_BROKEN", false))
	assert.Equal(t, "fallback", EnvDefaultString("EXEMPLAR_TEST_UNSET", "fallback"))
}
