package vector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVectorFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExpandsContextList(t *testing.T) {
	path := writeVectorFile(t, "v.json", `{
		"schema": "xssbench-vectors/1",
		"vectors": [
			{
				"id": "script",
				"description": "d",
				"payload_html": "<script>alert(1)</script>",
				"payload_context": ["html", "html_head"],
				"expected_tags": []
			}
		]
	}`)

	vecs, err := Load([]string{path})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, ContextHTML, vecs[0].PayloadContext)
	assert.Equal(t, ContextHTMLHead, vecs[1].PayloadContext)
	require.NotNil(t, vecs[0].ExpectedTags)
	assert.Empty(t, vecs[0].ExpectedTags)
}

func TestLoadDefaultsContextToHTML(t *testing.T) {
	path := writeVectorFile(t, "v.json", `{
		"vectors": [
			{"id": "a", "description": "d", "payload_html": "<b>x</b>"}
		]
	}`)

	vecs, err := Load([]string{path})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, ContextHTML, vecs[0].PayloadContext)
	assert.Nil(t, vecs[0].ExpectedTags)
}

func TestLoadLegacyBareList(t *testing.T) {
	path := writeVectorFile(t, "v.json", `[
		{"id": "a", "description": "d", "payload_html": "<b>x</b>", "payload_context": "html"}
	]`)

	vecs, err := Load([]string{path})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
}

func TestLoadRejectsDuplicateIDAndContextAcrossFiles(t *testing.T) {
	content := `{
		"vectors": [
			{"id": "dup", "description": "d", "payload_html": "<b>x</b>", "payload_context": "html"}
		]
	}`
	first := writeVectorFile(t, "a.json", content)
	second := writeVectorFile(t, "b.json", content)

	_, err := Load([]string{first, second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate vector id+context dup@html")
}

func TestLoadAllowsSameIDInDifferentContexts(t *testing.T) {
	path := writeVectorFile(t, "v.json", `{
		"vectors": [
			{"id": "same", "description": "d", "payload_html": "x", "payload_context": "js"},
			{"id": "same", "description": "d", "payload_html": "x", "payload_context": "js_string"}
		]
	}`)

	vecs, err := Load([]string{path})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

func TestLoadRejectsExpectedTagsForJSContexts(t *testing.T) {
	path := writeVectorFile(t, "v.json", `{
		"vectors": [
			{
				"id": "bad",
				"description": "d",
				"payload_html": "alert(1)",
				"payload_context": "js",
				"expected_tags": ["img"]
			}
		]
	}`)

	_, err := Load([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected_tags is not allowed for context")
}

func TestLoadFileOptionIgnoresExpectedTags(t *testing.T) {
	path := writeVectorFile(t, "v.json", `{
		"options": {"expected_tags": "ignore"},
		"vectors": [
			{
				"id": "a",
				"description": "d",
				"payload_html": "<b>x</b>",
				"payload_context": "html",
				"expected_tags": ["b"]
			}
		]
	}`)

	vecs, err := Load([]string{path})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Nil(t, vecs[0].ExpectedTags)
}

func TestLoadRejectsMissingKeys(t *testing.T) {
	path := writeVectorFile(t, "v.json", `{
		"vectors": [
			{"id": "a", "payload_html": "<b>x</b>"}
		]
	}`)

	_, err := Load([]string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing keys")
}

func TestLoadRejectsEmptyContextList(t *testing.T) {
	path := writeVectorFile(t, "v.json", `{
		"vectors": [
			{"id": "a", "description": "d", "payload_html": "x", "payload_context": []}
		]
	}`)

	_, err := Load([]string{path})
	require.Error(t, err)
}
