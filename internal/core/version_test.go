package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1.20.4")
	require.NoError(t, err)
	assert.Equal(t, Version("1.20.4"), v)

	_, err = ParseVersion("1.8.9")
	require.ErrorContains(t, err, "unsupported version")
	_, err = ParseVersion("")
	require.Error(t, err)
}

func TestDefaultVersionIsNewest(t *testing.T) {
	versions := Versions()
	require.NotEmpty(t, versions)
	assert.Equal(t, versions[len(versions)-1], DefaultVersion())
}

func TestVersionsSortedByRelease(t *testing.T) {
	versions := Versions()
	assert.Len(t, versions, 28)

	// Semantic order, not lexical: 1.16.5 precedes 1.17 but follows 1.16.2.
	index := make(map[Version]int, len(versions))
	for i, v := range versions {
		index[v] = i
	}
	assert.Less(t, index["1.16.2"], index["1.16.5"])
	assert.Less(t, index["1.16.5"], index["1.17"])
	assert.Less(t, index["1.20.5"], index["1.21"])
	assert.Equal(t, Version("1.16"), versions[0])
	assert.Equal(t, Version("1.21.7"), versions[len(versions)-1])
}
