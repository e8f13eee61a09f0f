package vector

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xssbench/xssbench/internal/normalize"
)

// Occurrence is one (vector, context) pair already present in a corpus.
type Occurrence struct {
	File           string `json:"file"`
	VectorID       string `json:"vector_id"`
	PayloadContext string `json:"payload_context"`
	PayloadHTML    string `json:"payload_html"`
}

// CheckResult reports whether one candidate payload is already covered by
// the corpus, and by which vectors.
type CheckResult struct {
	File           string       `json:"file"`
	Index          int          `json:"index"`
	PayloadContext string       `json:"payload_context"`
	PayloadHTML    string       `json:"payload_html"`
	AlreadyTested  bool         `json:"already_tested"`
	Matched        []Occurrence `json:"matched,omitempty"`
}

// Occurrences expands vector files into per-context occurrences without
// building full Vector records.
func Occurrences(paths []string) ([]Occurrence, error) {
	var out []Occurrence
	for _, path := range paths {
		items, _, err := readFile(path)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if err := requireKeys(item, path); err != nil {
				return nil, err
			}
			contexts, err := itemContexts(item, path)
			if err != nil {
				return nil, err
			}
			for _, ctx := range contexts {
				out = append(out, Occurrence{
					File:           path,
					VectorID:       *item.ID,
					PayloadContext: string(ctx),
					PayloadHTML:    *item.PayloadHTML,
				})
			}
		}
	}
	return out, nil
}

type rawCandidate struct {
	PayloadHTML    *string `json:"payload_html"`
	PayloadContext string  `json:"payload_context"`
}

// candidates parses a candidate file: a JSON list of payload strings, a list
// of {payload_html, payload_context} objects, or a {"vectors": [...]} wrapper
// of the object form.
func candidates(path string) ([]rawCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read candidate file: %w", err)
	}

	var wrapper struct {
		Vectors json.RawMessage `json:"vectors"`
	}
	body := data
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Vectors) > 0 {
		body = wrapper.Vectors
	}

	var rawItems []json.RawMessage
	if err := json.Unmarshal(body, &rawItems); err != nil {
		return nil, fmt.Errorf("%s: candidate file must be a JSON list (or object with 'vectors')", path)
	}

	out := make([]rawCandidate, 0, len(rawItems))
	for _, raw := range rawItems {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, rawCandidate{PayloadHTML: &s, PayloadContext: string(ContextHTML)})
			continue
		}
		var c rawCandidate
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%s: candidate items must be strings or objects", path)
		}
		if c.PayloadHTML == nil {
			return nil, fmt.Errorf("%s: candidate item missing payload_html", path)
		}
		if c.PayloadContext == "" {
			c.PayloadContext = string(ContextHTML)
		}
		if _, err := ParseContext(c.PayloadContext); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// CheckCandidates normalizes candidate payloads and reports which ones are
// already covered by the existing corpus (same context, same canonical form).
func CheckCandidates(newPaths, againstPaths []string) ([]CheckResult, error) {
	occs, err := Occurrences(againstPaths)
	if err != nil {
		return nil, err
	}

	byNorm := make(map[string][]Occurrence)
	for _, occ := range occs {
		key := occ.PayloadContext + "\x00" + normalize.Payload(occ.PayloadHTML)
		byNorm[key] = append(byNorm[key], occ)
	}

	var results []CheckResult
	for _, path := range newPaths {
		cands, err := candidates(path)
		if err != nil {
			return nil, err
		}
		for i, cand := range cands {
			key := cand.PayloadContext + "\x00" + normalize.Payload(*cand.PayloadHTML)
			matched := byNorm[key]
			results = append(results, CheckResult{
				File:           path,
				Index:          i,
				PayloadContext: cand.PayloadContext,
				PayloadHTML:    *cand.PayloadHTML,
				AlreadyTested:  len(matched) > 0,
				Matched:        matched,
			})
		}
	}
	return results, nil
}
