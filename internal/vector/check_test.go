package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCandidatesMatchesNormalizedDuplicates(t *testing.T) {
	corpus := writeVectorFile(t, "corpus.json", `{
		"vectors": [
			{"id": "img-1", "description": "d", "payload_html": "<img src=x onerror=alert(1)>", "payload_context": "html"},
			{"id": "href-1", "description": "d", "payload_html": "javascript:alert(1)", "payload_context": "href"}
		]
	}`)
	cands := writeVectorFile(t, "candidates.json", `[
		"<IMG  ONERROR=alert(1) SRC=x>",
		"<svg onload=alert(1)>",
		{"payload_html": "JAVASCRIPT:alert(1)", "payload_context": "href"}
	]`)

	results, err := CheckCandidates([]string{cands}, []string{corpus})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].AlreadyTested)
	require.Len(t, results[0].Matched, 1)
	assert.Equal(t, "img-1", results[0].Matched[0].VectorID)

	assert.False(t, results[1].AlreadyTested)
	assert.Empty(t, results[1].Matched)

	assert.True(t, results[2].AlreadyTested)
	assert.Equal(t, "href-1", results[2].Matched[0].VectorID)
}

func TestCheckCandidatesContextScopesMatch(t *testing.T) {
	corpus := writeVectorFile(t, "corpus.json", `{
		"vectors": [
			{"id": "a", "description": "d", "payload_html": "<b>x</b>", "payload_context": "html"}
		]
	}`)
	cands := writeVectorFile(t, "candidates.json", `[
		{"payload_html": "<b>x</b>", "payload_context": "html_head"}
	]`)

	results, err := CheckCandidates([]string{cands}, []string{corpus})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].AlreadyTested)
}

func TestCheckCandidatesRejectsBadContext(t *testing.T) {
	corpus := writeVectorFile(t, "corpus.json", `{
		"vectors": [
			{"id": "a", "description": "d", "payload_html": "x", "payload_context": "html"}
		]
	}`)
	cands := writeVectorFile(t, "candidates.json", `[
		{"payload_html": "x", "payload_context": "nope"}
	]`)

	_, err := CheckCandidates([]string{cands}, []string{corpus})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid payload_context")
}
