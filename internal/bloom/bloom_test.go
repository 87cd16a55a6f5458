package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateFilterMatchesAllKeys(t *testing.T) {
	keys := [][]byte{[]byte("hello"), []byte("world"), []byte("lsm"), []byte("engine")}
	filter := CreateFilter(keys, 10)
	for _, k := range keys {
		require.True(t, MayMatch(filter, k), "key %q should match its own filter", k)
	}
}

func TestFalsePositiveRateBound(t *testing.T) {
	keys := [][]byte{[]byte("hello"), []byte("world"), []byte("lsm"), []byte("engine")}
	filter := CreateFilter(keys, 10)

	falsePositives := 0
	const trials = 10000
	for i := 0; i < trials; i++ {
		key := []byte(fmt.Sprintf("absent-key-%d", i))
		if MayMatch(filter, key) {
			falsePositives++
		}
	}
	require.LessOrEqual(t, falsePositives, 200, "false positive rate should be well under 2%%")
}

func TestNumProbesClamped(t *testing.T) {
	require.Equal(t, 1, numProbes(0))
	require.Equal(t, 1, numProbes(1))
	require.Equal(t, 30, numProbes(1000))
}
