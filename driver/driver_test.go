package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliftlabs/relift/internal/arch"
)

const sampleIR = `
func main {
	block entry {
		r1:32 = 0x10:32
		r2:32 = add(r1:32, 0x4:32)
	}
}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", "name: custom\nbyte-order: big\nprogress: false\n")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", config.Name)
	assert.Equal(t, "big", config.ByteOrder)
	assert.False(t, config.Progress)
}

func TestConfigArchitecture(t *testing.T) {
	little, err := Config{ByteOrder: "little"}.Architecture()
	require.NoError(t, err)
	assert.Equal(t, arch.LittleEndian, little.ByteOrder())

	big, err := Config{ByteOrder: "big"}.Architecture()
	require.NoError(t, err)
	assert.Equal(t, arch.BigEndian, big.ByteOrder())

	_, err = Config{ByteOrder: "middle"}.Architecture()
	assert.Error(t, err)
}

func TestAnalyzeFile(t *testing.T) {
	path := writeFile(t, "sample.ir", sampleIR)

	results, err := AnalyzeFile(context.Background(), nil, DefaultConfig(), path)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "main", res.Function.Name())

	// The chained addition resolves to a concrete value.
	add := res.Function.BasicBlocks()[0].Statements()[1].Right()
	v, ok := res.Dataflow.LookupValue(add)
	require.True(t, ok)
	require.True(t, v.AbstractValue().IsConcrete())
	assert.Equal(t, uint64(0x14), v.AbstractValue().AsConcrete())
}

func TestAnalyzeFileRejectsBadInput(t *testing.T) {
	path := writeFile(t, "bad.ir", "func { nope }")

	_, err := AnalyzeFile(context.Background(), nil, DefaultConfig(), path)
	assert.Error(t, err)
}

func TestProcessFiles(t *testing.T) {
	path := writeFile(t, "sample.ir", sampleIR)

	var out bytes.Buffer
	err := ProcessFiles(context.Background(), nil, DefaultConfig(), []string{path}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "func main")
	assert.Contains(t, out.String(), "0x14")
}
