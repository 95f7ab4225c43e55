package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	payload := map[string]any{
		"source":  "cdc",
		"url":     "https://example.org/guidelines",
		"content": "Treatment: Drug A 500mg",
		"tables":  []any{[]any{"Regimen", "Dose"}},
	}

	fp1, err := Fingerprint(payload)
	require.NoError(t, err)
	fp2, err := Fingerprint(payload)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64)
}

func TestFingerprintKeyOrderIndependence(t *testing.T) {
	// Structs marshal in declaration order; maps marshal in Go's randomized
	// iteration order. Both must canonicalize identically.
	type ordered struct {
		A string `json:"a"`
		B int    `json:"b"`
	}
	fromStruct, err := Fingerprint(ordered{A: "x", B: 2})
	require.NoError(t, err)
	fromMap, err := Fingerprint(map[string]any{"b": 2, "a": "x"})
	require.NoError(t, err)

	assert.Equal(t, fromStruct, fromMap)
}

func TestFingerprintSensitivity(t *testing.T) {
	base := map[string]any{"content": "Treatment: Drug A 500mg"}
	changed := map[string]any{"content": "Treatment: Drug B 1000mg"}

	fpBase, err := Fingerprint(base)
	require.NoError(t, err)
	fpChanged, err := Fingerprint(changed)
	require.NoError(t, err)

	assert.NotEqual(t, fpBase, fpChanged)
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"z": 1, "a": 2, "m": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"m":3,"z":1}`, string(got))
}

func TestCanonicalJSONNumbers(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"pct": 0.5, "count": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"count":3,"pct":0.5}`, string(got))
}
