// Package importer pulls third-party payload collections into vector
// files. Importing is best effort: the benchmark never depends on the
// network, it only grows its corpus from it.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	resty "github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/xssbench/xssbench/internal/vector"
)

// DefaultCheatSheetURL is the PortSwigger XSS cheat sheet.
const DefaultCheatSheetURL = "https://portswigger.net/web-security/cross-site-scripting/cheat-sheet"

type Importer struct {
	client *resty.Client
	log    *zap.Logger
}

func New(log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetHeader("User-Agent", "xssbench-importer")
	return &Importer{client: client, log: log}
}

type fileVector struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	PayloadHTML    string   `json:"payload_html"`
	PayloadContext []string `json:"payload_context"`
}

type vectorFile struct {
	Schema  string            `json:"schema"`
	Meta    map[string]string `json:"meta"`
	Vectors []fileVector      `json:"vectors"`
}

// ImportCheatSheet downloads the cheat sheet page, extracts markup-like
// payload snippets, and writes them as an html-context vector file.
// It returns how many vectors were written.
func (i *Importer) ImportCheatSheet(ctx context.Context, pageURL, outPath string) (int, error) {
	if pageURL == "" {
		pageURL = DefaultCheatSheetURL
	}
	resp, err := i.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return 0, fmt.Errorf("fetch cheat sheet: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("fetch cheat sheet: status %s", resp.Status())
	}

	payloads, err := extractPayloads(resp.Body())
	if err != nil {
		return 0, fmt.Errorf("parse cheat sheet: %w", err)
	}
	if len(payloads) == 0 {
		return 0, fmt.Errorf("no payload snippets found at %s", pageURL)
	}

	if err := writeVectorFile(payloads, pageURL, outPath); err != nil {
		return 0, err
	}
	i.log.Info("imported payloads",
		zap.String("source", pageURL),
		zap.String("out", outPath),
		zap.Int("count", len(payloads)))
	return len(payloads), nil
}

// extractPayloads pulls deduplicated payload snippets out of the cheat
// sheet's code blocks, in page order.
func extractPayloads(page []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var payloads []string
	doc.Find("code").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if !looksLikePayload(text) {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		payloads = append(payloads, text)
	})
	return payloads, nil
}

// writeVectorFile persists imported payloads as an html-context v1
// vector file the loader accepts.
func writeVectorFile(payloads []string, pageURL, outPath string) error {
	out := vectorFile{
		Schema: "xssbench-vectors/1",
		Meta: map[string]string{
			"source":      pageURL,
			"imported_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	for n, payload := range payloads {
		out.Vectors = append(out.Vectors, fileVector{
			ID:             fmt.Sprintf("portswigger-%04d", n+1),
			Description:    "PortSwigger cheat sheet payload",
			PayloadHTML:    payload,
			PayloadContext: []string{string(vector.ContextHTML)},
		})
	}

	if dir := filepath.Dir(outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create import dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

// looksLikePayload keeps snippets that could render as markup and drops
// prose or fragments too short to matter.
func looksLikePayload(s string) bool {
	if len(s) < 4 || len(s) > 2000 {
		return false
	}
	if !strings.Contains(s, "<") && !strings.Contains(strings.ToLower(s), "javascript:") {
		return false
	}
	return !strings.Contains(s, "\n\n")
}
