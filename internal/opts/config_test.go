/*
 * Copyright 2024 CloudWeGo Authors
 *
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

package opts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
passes       = ["PeepholePass"]
workers      = 4
testing_mode = true

[pass.PeepholePass]
disabled_rules = ["Arith_MulLit_Pow2", "Remove_SelfMove"]
`

func TestConfig_Parse(t *testing.T) {
	conf, err := ParseConfig(testConfig)
	require.NoError(t, err)
	require.Equal(t, []string{"PeepholePass"}, conf.Passes)
	require.Equal(t, 4, conf.Workers)
	require.True(t, conf.TestingMode)
	rules, err := conf.Strings("PeepholePass", "disabled_rules")
	require.NoError(t, err)
	require.Equal(t, []string{"Arith_MulLit_Pow2", "Remove_SelfMove"}, rules)
}

func TestConfig_LoadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "redex.toml")
	require.NoError(t, os.WriteFile(fn, []byte(testConfig), 0644))
	conf, err := LoadConfig(fn)
	require.NoError(t, err)
	require.Equal(t, 4, conf.Workers)
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestConfig_Errors(t *testing.T) {
	_, err := ParseConfig(`workers = -1`)
	require.Error(t, err)
	_, err = ParseConfig(`no_such_key = 1`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no_such_key")
	_, err = ParseConfig(`workers = `)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	require.NotNil(t, ce.Unwrap())
}

func TestConfig_ForPass(t *testing.T) {
	var conf *Config
	require.Empty(t, conf.ForPass("PeepholePass"))
	conf, err := ParseConfig(`
[pass.PeepholePass]
disabled_rules = "Arith_AddLit_0"
`)
	require.NoError(t, err)
	require.Len(t, conf.ForPass("PeepholePass"), 1)
	_, err = conf.Strings("PeepholePass", "disabled_rules")
	require.Error(t, err)
	v, err := conf.Strings("OtherPass", "disabled_rules")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestOptions_Apply(t *testing.T) {
	o := GetDefaultOptions()
	require.Equal(t, Workers, o.Workers)
	require.NotNil(t, o.Logger)
	o.Apply(nil)
	require.False(t, o.TestingMode)
	o.Apply(&Config{Workers: 8, TestingMode: true})
	require.Equal(t, 8, o.Workers)
	require.True(t, o.TestingMode)
	require.True(t, o.Parallel())
}

func TestParseOrDefault(t *testing.T) {
	t.Setenv("REDEX_TEST_VALUE", "")
	require.Equal(t, 3, parseOrDefault("REDEX_TEST_VALUE", 3, 0))
	t.Setenv("REDEX_TEST_VALUE", "0x10")
	require.Equal(t, 16, parseOrDefault("REDEX_TEST_VALUE", 3, 0))
	t.Setenv("REDEX_TEST_VALUE", "0")
	require.Panics(t, func() { parseOrDefault("REDEX_TEST_VALUE", 3, 0) })
	t.Setenv("REDEX_TEST_VALUE", "abc")
	require.Panics(t, func() { parseOrDefault("REDEX_TEST_VALUE", 3, 0) })
}
