package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xssbench/xssbench/internal/vector"
)

func TestDocumentPlacesPayloadAtSink(t *testing.T) {
	tests := []struct {
		ctx      vector.PayloadContext
		payload  string
		contains string
	}{
		{vector.ContextHTML, "<b>x</b>", `<div id="root"><b>x</b></div>`},
		{vector.ContextHref, "javascript:alert(1)", `<a id="xssbench-link" href="javascript:alert(1)">x</a>`},
		{vector.ContextJS, "alert(1)", `<script>alert(1)</script>`},
		{vector.ContextJSArg, "1);alert(1", `setTimeout(function(){}, 1);alert(1);`},
		{vector.ContextJSString, `';alert(1);'`, `var __xssbench_probe = '';alert(1);'';`},
		{vector.ContextJSStringDouble, `";alert(1);"`, `var __xssbench_probe = "";alert(1);"";`},
		{vector.ContextOnerrorAttr, "alert(1)", `onerror="alert(1)"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.ctx), func(t *testing.T) {
			doc, err := Document(tt.payload, tt.ctx)
			require.NoError(t, err)
			assert.Contains(t, doc, tt.contains)
			assert.Contains(t, doc, `<base href="http://xssbench.local/">`)
		})
	}
}

func TestDocumentHeadContext(t *testing.T) {
	doc, err := Document(`<meta x>`, vector.ContextHTMLHead)
	require.NoError(t, err)
	head := doc[:strings.Index(doc, "<body")]
	assert.Contains(t, head, `<meta x>`)
}

func TestDocumentOuterContextOmitsBody(t *testing.T) {
	doc, err := Document(`<body onload="alert(1)">`, vector.ContextHTMLOuter)
	require.NoError(t, err)
	assert.Contains(t, doc, `<body onload="alert(1)">`)
	assert.NotContains(t, doc, `<div id="root">`)
}

func TestDocumentRejectsUnknownContext(t *testing.T) {
	_, err := Document("x", vector.PayloadContext("bogus"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payload context")
}

func TestLeakTemplateSelection(t *testing.T) {
	// Whole-page elements stay outer siblings.
	doc, err := Document(`<body background="//evil.example/x">`, vector.ContextHTTPLeak)
	require.NoError(t, err)
	assert.NotContains(t, doc, "xssbench-css-target")

	// Everything else lands in both head and body.
	doc, err = Document(`<img src="//evil.example/x">`, vector.ContextHTTPLeak)
	require.NoError(t, err)
	assert.Contains(t, doc, "xssbench-css-target")
	assert.Equal(t, 2, strings.Count(doc, `<img src="//evil.example/x">`))

	doc, err = Document(`<style>@import url(//evil.example/x);</style>`, vector.ContextHTTPLeakStyle)
	require.NoError(t, err)
	assert.Contains(t, doc, "xssbench-css-target")
}

func TestSpeedUpMetaRefresh(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "delay with url",
			in:   `<meta http-equiv="refresh" content="10; url=javascript:alert(1)">`,
			want: `<meta http-equiv="refresh" content="0; url=javascript:alert(1)">`,
		},
		{
			name: "delay only",
			in:   `<meta http-equiv="refresh" content="30">`,
			want: `<meta http-equiv="refresh" content="0">`,
		},
		{
			name: "case insensitive",
			in:   `<META HTTP-EQUIV="Refresh" CONTENT="5; URL=http://evil.example/">`,
			want: `<META HTTP-EQUIV="Refresh" CONTENT="0; url=http://evil.example/">`,
		},
		{
			name: "no refresh untouched",
			in:   `<meta charset="utf-8">`,
			want: `<meta charset="utf-8">`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpeedUpMetaRefresh(tt.in, 0))
		})
	}
}
