package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CompileStats summarizes one vector-pack compilation.
type CompileStats struct {
	ExpandedVectors           int
	WrittenVectors            int
	SkippedUnusefulDuplicates int
}

type compiledVector struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	PayloadHTML    string `json:"payload_html"`
	PayloadContext string `json:"payload_context"`
}

// canonicalForUnusefulDuplicate collapses only formatting-level differences
// (Unicode form, newlines, surrounding whitespace, NUL bytes). Entity
// escaping, case, and attribute ordering are intentionally preserved: those
// differences can be distinct bypass variants.
func canonicalForUnusefulDuplicate(payload string) string {
	s := strings.ReplaceAll(payload, "\x00", "")
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// Compile expands and validates vector packs into a single canonical JSON
// artifact, optionally dropping formatting-level duplicates per context.
func Compile(paths []string, outPath string, dedupeUnuseful bool) (CompileStats, error) {
	var stats CompileStats
	var out []compiledVector

	seenIDCtx := make(map[string]struct{})
	seenPayloadCtx := make(map[string]struct{})

	for _, path := range paths {
		items, _, err := readFile(path)
		if err != nil {
			return stats, err
		}

		for _, item := range items {
			if err := requireKeys(item, path); err != nil {
				return stats, err
			}
			contexts, err := itemContexts(item, path)
			if err != nil {
				return stats, err
			}

			for _, ctx := range contexts {
				stats.ExpandedVectors++

				idKey := *item.ID + "@" + string(ctx)
				if _, dup := seenIDCtx[idKey]; dup {
					return stats, fmt.Errorf("duplicate vector id+context: %s", idKey)
				}
				seenIDCtx[idKey] = struct{}{}

				if dedupeUnuseful {
					payloadKey := string(ctx) + "\x00" + canonicalForUnusefulDuplicate(*item.PayloadHTML)
					if _, dup := seenPayloadCtx[payloadKey]; dup {
						stats.SkippedUnusefulDuplicates++
						continue
					}
					seenPayloadCtx[payloadKey] = struct{}{}
				}

				out = append(out, compiledVector{
					ID:             *item.ID,
					Description:    *item.Description,
					PayloadHTML:    *item.PayloadHTML,
					PayloadContext: string(ctx),
				})
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return stats, fmt.Errorf("create output directory: %w", err)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return stats, err
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return stats, fmt.Errorf("write compiled pack: %w", err)
	}

	stats.WrittenVectors = len(out)
	return stats, nil
}
