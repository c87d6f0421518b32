package commands_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/datasynth/datasynth/cmd/datasynth/commands"
	"github.com/datasynth/datasynth/internal/constants"
	"github.com/datasynth/datasynth/internal/contentkey"
	"github.com/datasynth/datasynth/internal/provider"
	"github.com/datasynth/datasynth/internal/testutils"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const description = "Hospital patient records with blood types"

type result struct {
	stdout   string
	err      error
	usageErr bool
}

// runApp runs a fresh app with a configuration file pointing the cache to dir.
func runApp(t *testing.T, dir string, extra map[string]any, args []string, opts ...commands.Options) result {
	t.Helper()

	conf := map[string]any{
		"verbosity": 2,
		"cache":     map[string]any{"path": filepath.Join(dir, "cache", "schemas.json")},
		"provider":  map[string]any{"name": "demo"},
	}
	for k, v := range extra {
		conf[k] = v
	}
	d, err := yaml.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal config for tests")
	confPath := filepath.Join(dir, "datasynth.yaml")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write config for tests")

	a, err := commands.New(opts...)
	require.NoError(t, err, "Setup: could not create app")

	var stdout bytes.Buffer
	a.SetOutput(&stdout, io.Discard)
	a.SetArgs(append(args, "--config", confPath)...)

	err = a.Run()
	return result{stdout: stdout.String(), err: err, usageErr: a.UsageError()}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		args  []string
		extra map[string]any

		wantRows     int
		wantStdout   bool
		wantErr      bool
		wantUsageErr bool
	}{
		"Generate to a named file":          {args: []string{"generate", description, "-n", "10", "-o", "out.csv"}, wantRows: 10},
		"Generate to the suggested filename": {args: []string{"generate", description, "--rows", "3"}, wantRows: 3},
		"Generate to stdout":                 {args: []string{"generate", description, "-n", "4", "-o", "-"}, wantRows: 4, wantStdout: true},
		"Generate with sqlite backend": {
			args:     []string{"generate", description, "-n", "2", "-o", "out.csv", "--cache-backend", "sqlite"},
			wantRows: 2,
		},
		"Generate without cache": {args: []string{"generate", description, "-n", "2", "-o", "out.csv", "--no-cache"}, wantRows: 2},

		"Error on zero rows":               {args: []string{"generate", description, "-n", "0"}, wantErr: true},
		"Error on too many rows":           {args: []string{"generate", description, "-n", "5"}, extra: map[string]any{"rows": map[string]any{"max": 4}}, wantErr: true},
		"Error on short description":       {args: []string{"generate", "tiny"}, wantErr: true},
		"Error on missing provider key":    {args: []string{"generate", description}, extra: map[string]any{"provider": map[string]any{"name": "anthropic"}}, wantErr: true},
		"Error on malformed OpenAI key":    {args: []string{"generate", description}, extra: map[string]any{"provider": map[string]any{"name": "openai", "key": "nope"}}, wantErr: true},
		"Usage error without description":  {args: []string{"generate"}, wantErr: true, wantUsageErr: true},
		"Usage error on unknown flag":      {args: []string{"generate", description, "--unknown"}, wantErr: true, wantUsageErr: true},
		"Usage error on non numeric rows":  {args: []string{"generate", description, "-n", "many"}, wantErr: true, wantUsageErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			args := append(tc.args, "--dir", dir)
			for i, a := range args {
				if a == "out.csv" {
					args[i] = filepath.Join(dir, a)
				}
			}

			res := runApp(t, dir, tc.extra, args)
			assert.Equal(t, tc.wantUsageErr, res.usageErr, "Unexpected usage error state")
			if tc.wantErr {
				require.Error(t, res.err)
				return
			}
			require.NoError(t, res.err)

			var content []byte
			if tc.wantStdout {
				content = []byte(res.stdout)
			} else {
				require.Contains(t, res.stdout, "Wrote ")
				path := strings.TrimSpace(res.stdout[strings.Index(res.stdout, " to ")+len(" to "):])
				assert.Equal(t, dir, filepath.Dir(path), "Dataset should be written in the requested directory")
				var err error
				content, err = os.ReadFile(path)
				require.NoError(t, err, "Dataset file should exist")
			}

			records, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
			require.NoError(t, err, "Output should be valid CSV")
			require.Len(t, records, tc.wantRows+1)
			assert.Equal(t, "patient_name", records[0][0])
		})
	}
}

func TestGenerateSuggestedFilename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	res := runApp(t, dir, nil, []string{"generate", description, "-n", "1", "--dir", dir})
	require.NoError(t, res.err)

	assert.FileExists(t, filepath.Join(dir, "healthcare_hospital_patient_records_blood_types.csv"))
}

type failingClient struct{ err error }

func (c failingClient) GenerateText(context.Context, provider.Request) (string, error) {
	return "", c.err
}

func TestGenerateProviderFailures(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err error
	}{
		"Error on connection failure": {err: provider.ErrConnection},
		"Error on timeout":            {err: provider.ErrTimeout},
		"Error on rate limit":         {err: provider.ErrRateLimited},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			extra := map[string]any{"provider": map[string]any{"name": "demo", "attempts": 2, "backoff": "1ms"}}
			res := runApp(t, dir, extra, []string{"generate", description}, commands.WithProvider(failingClient{err: tc.err}))
			require.Error(t, res.err)
			assert.False(t, res.usageErr, "Provider failures are not usage errors")
		})
	}
}

func TestSchema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	res := runApp(t, dir, nil, []string{"schema", description})
	require.NoError(t, res.err)

	var got struct {
		DescriptionHash string         `yaml:"description_hash"`
		Domain          string         `yaml:"domain"`
		Fields          map[string]any `yaml:"fields_schema"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &got), "Output should be YAML")

	key, err := contentkey.Generate(description)
	require.NoError(t, err)
	assert.Equal(t, key, got.DescriptionHash)
	assert.Equal(t, "healthcare", got.Domain)
	assert.Contains(t, got.Fields, "blood_type")
	assert.True(t, strings.Index(res.stdout, "patient_name") < strings.Index(res.stdout, "blood_type"), "Fields should keep their order")
}

func TestCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	key, err := contentkey.Generate(description)
	require.NoError(t, err)

	res := runApp(t, dir, nil, []string{"cache", "stats"})
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "total_schemas: 0")
	assert.Contains(t, res.stdout, "healthy: true")

	res = runApp(t, dir, nil, []string{"schema", description})
	require.NoError(t, res.err, "Setup: schema should be cached")

	res = runApp(t, dir, nil, []string{"cache", "stats"})
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "enabled: true")
	assert.Contains(t, res.stdout, "total_schemas: 1")

	res = runApp(t, dir, nil, []string{"cache", "list"})
	require.NoError(t, res.err)
	assert.Equal(t, key+"\n", res.stdout)

	res = runApp(t, dir, nil, []string{"cache", "key", "  HOSPITAL patient records   with blood types"})
	require.NoError(t, res.err)
	assert.Equal(t, key+"\n", res.stdout, "Key should be computed on the normalized description")

	res = runApp(t, dir, nil, []string{"cache", "show", key})
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "domain: healthcare")

	res = runApp(t, dir, nil, []string{"cache", "show", strings.Repeat("0", 64)})
	require.Error(t, res.err, "Showing an unknown key should fail")

	res = runApp(t, dir, nil, []string{"cache", "show", "not-a-key"})
	require.Error(t, res.err, "Showing an invalid key should fail")

	res = runApp(t, dir, nil, []string{"cache", "clear"})
	require.NoError(t, res.err)
	assert.FileExists(t, filepath.Join(dir, "cache", "schemas.json"+constants.BackupSuffix), "Clear should keep a backup")

	res = runApp(t, dir, nil, []string{"cache", "list"})
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
}

func TestCacheDisabled(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		args []string

		wantStdout string
		wantErr    bool
	}{
		"Stats report a disabled cache": {args: []string{"cache", "stats", "--no-cache"}, wantStdout: "enabled: false"},
		"List fails":                    {args: []string{"cache", "list", "--no-cache"}, wantErr: true},
		"Clear fails":                   {args: []string{"cache", "clear", "--no-cache"}, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res := runApp(t, t.TempDir(), nil, tc.args)
			if tc.wantErr {
				require.Error(t, res.err)
				return
			}
			require.NoError(t, res.err)
			assert.Contains(t, res.stdout, tc.wantStdout)
		})
	}
}

func TestConfigFromEnvironmentAndFlags(t *testing.T) {
	t.Setenv("DATASYNTH_RATELIMIT_MINUTE", "7")

	dir := t.TempDir()
	conf := filepath.Join(dir, "datasynth.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("provider:\n  name: demo\n  timeout: 5s\n"), 0600), "Setup: failed to write config")

	a, err := commands.New()
	require.NoError(t, err)
	a.SetOutput(io.Discard, io.Discard)
	a.SetArgs("version", "--config", conf, "--model", "m1", "--seed", "42")
	require.NoError(t, a.Run())

	c := a.Config()
	assert.Equal(t, 7, c.Ratelimit.Minute, "Environment should override defaults")
	assert.Equal(t, constants.DefaultRequestsPerDay, c.Ratelimit.Day)
	assert.Equal(t, "demo", c.Provider.Name, "Config file should override flag defaults")
	assert.Equal(t, "m1", c.Provider.Model, "Flags should be bound")
	assert.Equal(t, 5*time.Second, c.Provider.Timeout, "Durations should be decoded")
	assert.Equal(t, uint64(42), c.Seed)
	assert.True(t, c.Cache.Enabled)
}

func TestFlags(t *testing.T) {
	t.Parallel()

	a, err := commands.New()
	require.NoError(t, err)
	root := a.RootCmd()
	gen, _, err := root.Find([]string{"generate"})
	require.NoError(t, err, "Setup: generate command should exist")

	tests := map[string]struct {
		cmd  *cobra.Command
		flag testutils.FlagCase
	}{
		"verbose":       {cmd: &root, flag: testutils.FlagCase{Name: "verbose", Short: "v", Default: "0", Persistent: true}},
		"json-logs":     {cmd: &root, flag: testutils.FlagCase{Name: "json-logs", Default: "false", Persistent: true}},
		"config":        {cmd: &root, flag: testutils.FlagCase{Name: "config", Persistent: true}},
		"provider":      {cmd: &root, flag: testutils.FlagCase{Name: "provider", Default: "openai", Persistent: true}},
		"cache-backend": {cmd: &root, flag: testutils.FlagCase{Name: "cache-backend", Default: "file", Persistent: true}},
		"no-cache":      {cmd: &root, flag: testutils.FlagCase{Name: "no-cache", Default: "false", Persistent: true}},
		"seed":          {cmd: &root, flag: testutils.FlagCase{Name: "seed", Default: "0", Persistent: true}},

		"rows":   {cmd: gen, flag: testutils.FlagCase{Name: "rows", Short: "n", Default: "1000"}},
		"output": {cmd: gen, flag: testutils.FlagCase{Name: "output", Short: "o"}},
		"dir":    {cmd: gen, flag: testutils.FlagCase{Name: "dir", Short: "d", Default: ".", Dirname: true}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testutils.RequireFlag(t, tc.cmd, tc.flag)
		})
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	res := runApp(t, t.TempDir(), nil, []string{"version"})
	require.NoError(t, res.err)
	assert.Equal(t, constants.CmdName+"\t"+constants.Version+"\n", res.stdout)
}

func TestUsageError(t *testing.T) {
	t.Parallel()

	res := runApp(t, t.TempDir(), nil, []string{"unknown-command"})
	require.Error(t, res.err)
	assert.True(t, res.usageErr)
}
