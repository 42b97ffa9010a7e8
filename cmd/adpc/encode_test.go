package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/config"
	"github.com/danielpatrickdp/adpc/internal/errs"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func defaultCore(t *testing.T) *adpc.Core {
	t.Helper()
	core, err := adpc.New(config.DefaultConfig().Core())
	require.NoError(t, err)
	return core
}

func TestEncodeCmd(t *testing.T) {
	core := defaultCore(t)
	v, err := core.Encode("elephant")
	require.NoError(t, err)
	region, err := core.RegionID(v)
	require.NoError(t, err)

	out, err := execute(t, "encode", "elephant")
	require.NoError(t, err)
	assert.Contains(t, out, "region: "+string(region))
	assert.Contains(t, out, "input:  elephant")
}

func TestEncodeCmdJSON(t *testing.T) {
	var got struct {
		Input       string    `json:"input"`
		Region      string    `json:"region"`
		Fingerprint []float64 `json:"fingerprint"`
	}
	executeJSON(t, &got, "encode", "cat")

	assert.Equal(t, "cat", got.Input)
	assert.Len(t, got.Fingerprint, 128)
	assert.NotEmpty(t, got.Region)
}

func TestEncodeCmdPhrase(t *testing.T) {
	core := defaultCore(t)
	want, err := core.EncodePhrase("big red dog")
	require.NoError(t, err)

	var got struct {
		Input       string    `json:"input"`
		Fingerprint []float64 `json:"fingerprint"`
	}
	executeJSON(t, &got, "encode", "big", "red", "dog")

	assert.Equal(t, "big red dog", got.Input)
	assert.InDeltaSlice(t, []float64(want), got.Fingerprint, 1e-12)
}

func TestEncodeCmdFull(t *testing.T) {
	out, err := execute(t, "encode", "--full", "cat")
	require.NoError(t, err)
	assert.Equal(t, 3+128, strings.Count(out, "\n"))
}

func TestEncodeCmdRejectsBlank(t *testing.T) {
	_, err := execute(t, "encode", "   ")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestSimilarityCmd(t *testing.T) {
	out, err := execute(t, "similarity", "cat", "cat")
	require.NoError(t, err)
	assert.Equal(t, "1.0000\n", out)

	var got struct {
		Similarity float64 `json:"similarity"`
	}
	executeJSON(t, &got, "sim", "cat", "dog")
	assert.GreaterOrEqual(t, got.Similarity, -1.0)
	assert.LessOrEqual(t, got.Similarity, 1.0)
}

func TestRegionCmdNearby(t *testing.T) {
	var got struct {
		Region string   `json:"region"`
		Nearby []string `json:"nearby"`
	}
	executeJSON(t, &got, "region", "quantum", "--nearby", "5")

	require.Len(t, got.Nearby, 5)
	assert.Equal(t, got.Region, got.Nearby[0])

	out, err := execute(t, "region", "quantum", "--nearby", "3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, got.Region+"\n"))
}

func TestRegionCmdRejectsNegativeNearby(t *testing.T) {
	_, err := execute(t, "region", "cat", "--nearby=-1")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestDistributionCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, writeFile(path, "house\n\ntree\n  river  \n"))

	var got adpc.Distribution
	executeJSON(t, &got, "distribution", "cat", "dog", "--file", path)

	assert.Equal(t, 5, got.Total)
	assert.GreaterOrEqual(t, got.Unique, 1)
	assert.LessOrEqual(t, got.Unique, 5)
	sum := 0
	for _, n := range got.Counts {
		sum += n
	}
	assert.Equal(t, 5, sum)

	out, err := execute(t, "dist", "cat", "dog", "cat")
	require.NoError(t, err)
	assert.Contains(t, out, "symbols: 3")
}

func TestDistributionCmdNeedsSymbols(t *testing.T) {
	_, err := execute(t, "distribution")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
