// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/courtroom/store"
	"github.com/blinklabs-io/courtroom/store/plugin"
)

type mockStore struct{}

func (m *mockStore) Get(context.Context, string) ([]byte, error) {
	return nil, store.ErrKeyNotFound
}

func (m *mockStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (m *mockStore) Delete(context.Context, string) error { return nil }
func (m *mockStore) Close() error                         { return nil }

func TestRegisterAndNew(t *testing.T) {
	pluginName := "test-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Name:               pluginName,
		NewFromOptionsFunc: func() (store.Store, error) { return &mockStore{}, nil },
	})
	found := false
	for _, p := range plugin.GetPlugins() {
		if p.Name == pluginName {
			found = true
			break
		}
	}
	assert.True(t, found, "plugin not in GetPlugins list")
	s, err := plugin.New(pluginName)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestNewUnknownPlugin(t *testing.T) {
	_, err := plugin.New("does-not-exist")
	require.Error(t, err)
}

func TestNewPluginError(t *testing.T) {
	pluginName := "test-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Name: pluginName,
		NewFromOptionsFunc: func() (store.Store, error) {
			return nil, errors.New("boom")
		},
	})
	_, err := plugin.New(pluginName)
	require.ErrorContains(t, err, "boom")
}

func TestOptionsFromFlagsEnvAndConfig(t *testing.T) {
	pluginName := "opts" + t.Name()
	var dataDir string
	var gc bool
	var interval time.Duration
	plugin.Register(plugin.PluginEntry{
		Name:               pluginName,
		NewFromOptionsFunc: func() (store.Store, error) { return &mockStore{}, nil },
		Options: []plugin.PluginOption{
			{
				Name:         "data-dir",
				Type:         plugin.PluginOptionTypeString,
				DefaultValue: ".courtroom",
				Dest:         &dataDir,
			},
			{
				Name:         "gc",
				Type:         plugin.PluginOptionTypeBool,
				DefaultValue: true,
				Dest:         &gc,
			},
			{
				Name:         "purge-interval",
				Type:         plugin.PluginOptionTypeDuration,
				DefaultValue: time.Minute,
				Dest:         &interval,
			},
		},
	})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))
	assert.Equal(t, ".courtroom", dataDir)
	assert.True(t, gc)
	require.NoError(
		t,
		fs.Parse([]string{"--store-" + pluginName + "-data-dir", "/tmp/x"}),
	)
	assert.Equal(t, "/tmp/x", dataDir)

	t.Setenv("COURTROOM_STORE_"+"OPTS"+"TESTOPTIONSFROMFLAGSENVANDCONFIG"+"_GC", "false")
	require.NoError(t, plugin.ProcessEnvVars())
	assert.False(t, gc)

	require.NoError(t, plugin.ProcessConfig(map[string]map[string]any{
		pluginName: {"purge-interval": "5s"},
	}))
	assert.Equal(t, 5*time.Second, interval)

	require.Error(t, plugin.SetPluginOption(pluginName, "gc", 12))
}
