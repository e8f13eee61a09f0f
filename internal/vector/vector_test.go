package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpectedTag(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    ExpectedTag
		wantErr bool
	}{
		{
			name: "bare tag",
			raw:  "img",
			want: ExpectedTag{Tag: "img"},
		},
		{
			name: "tag with attrs",
			raw:  "a[href,title]",
			want: ExpectedTag{Tag: "a", Attrs: []string{"href", "title"}},
		},
		{
			name: "attrs are sorted and lowercased",
			raw:  "IMG[SRC,Alt]",
			want: ExpectedTag{Tag: "img", Attrs: []string{"alt", "src"}},
		},
		{
			name:    "empty brackets rejected",
			raw:     "img[]",
			wantErr: true,
		},
		{
			name:    "empty string rejected",
			raw:     "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpectedTag(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExpectedTagEmptyBracketsMessage(t *testing.T) {
	_, err := ParseExpectedTag("img[]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not use empty brackets")
}

func TestExpectedTagString(t *testing.T) {
	bare, err := ParseExpectedTag("img")
	require.NoError(t, err)
	assert.Equal(t, "img", bare.String())

	withAttrs, err := ParseExpectedTag("a[title,href]")
	require.NoError(t, err)
	assert.Equal(t, "a[href,title]", withAttrs.String())
}

func TestParseContext(t *testing.T) {
	for _, ctx := range Contexts() {
		got, err := ParseContext(string(ctx))
		require.NoError(t, err)
		assert.Equal(t, ctx, got)
	}

	_, err := ParseContext("mystery")
	require.Error(t, err)
}

func TestAllowsExpectedTags(t *testing.T) {
	assert.True(t, ContextHTML.AllowsExpectedTags())
	assert.True(t, ContextHTTPLeak.AllowsExpectedTags())
	assert.True(t, ContextOnerrorAttr.AllowsExpectedTags())

	for _, ctx := range []PayloadContext{ContextHref, ContextJS, ContextJSArg, ContextJSString, ContextJSStringDouble} {
		assert.False(t, ctx.AllowsExpectedTags(), string(ctx))
	}
}

func TestIsHTTPLeak(t *testing.T) {
	assert.True(t, ContextHTTPLeak.IsHTTPLeak())
	assert.True(t, ContextHTTPLeakStyle.IsHTTPLeak())
	assert.False(t, ContextHTML.IsHTTPLeak())
}
