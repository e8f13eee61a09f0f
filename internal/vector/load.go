package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// fileHeader is the v1 vector-file wrapper. Legacy files are a bare JSON
// list of vector objects; v1 files carry schema/meta/options headers.
type fileHeader struct {
	Schema  string          `json:"schema"`
	Meta    json.RawMessage `json:"meta"`
	Options *fileOptions    `json:"options"`
	Vectors json.RawMessage `json:"vectors"`
}

type fileOptions struct {
	ExpectedTags string `json:"expected_tags"`
}

type rawVector struct {
	ID             *string         `json:"id"`
	Description    *string         `json:"description"`
	PayloadHTML    *string         `json:"payload_html"`
	PayloadContext json.RawMessage `json:"payload_context"`
	ExpectedTags   *[]string       `json:"expected_tags"`
}

// Load reads one or more vector files and expands them into an immutable
// vector list. Each (id, payload_context) pair must be unique across every
// loaded file.
func Load(paths []string) ([]Vector, error) {
	var out []Vector
	seen := make(map[string]string) // id@context -> file

	for _, path := range paths {
		items, ignoreExpected, err := readFile(path)
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

			expected, err := itemExpectedTags(item, ignoreExpected, path)
			if err != nil {
				return nil, err
			}

			for _, ctx := range contexts {
				if expected != nil && !ctx.AllowsExpectedTags() {
					return nil, fmt.Errorf("%s: expected_tags is not allowed for context %q (vector %s)", path, ctx, *item.ID)
				}

				key := *item.ID + "@" + string(ctx)
				if prev, dup := seen[key]; dup {
					return nil, fmt.Errorf("duplicate vector id+context %s@%s (first seen in %s)", *item.ID, ctx, prev)
				}
				seen[key] = path

				out = append(out, Vector{
					ID:             *item.ID,
					Description:    *item.Description,
					PayloadHTML:    *item.PayloadHTML,
					PayloadContext: ctx,
					ExpectedTags:   expected,
				})
			}
		}
	}

	return out, nil
}

func readFile(path string) (items []rawVector, ignoreExpected bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read vector file: %w", err)
	}

	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if strings.HasPrefix(trimmed, "[") {
		// Legacy schema: bare list of vectors.
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, false, fmt.Errorf("%s: %w", path, err)
		}
		return items, false, nil
	}

	var header fileHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	if len(header.Vectors) == 0 {
		return nil, false, fmt.Errorf("%s: vector file object must contain a 'vectors' key", path)
	}
	if err := json.Unmarshal(header.Vectors, &items); err != nil {
		return nil, false, fmt.Errorf("%s: 'vectors' must be a JSON list: %w", path, err)
	}
	ignoreExpected = header.Options != nil && header.Options.ExpectedTags == "ignore"
	return items, ignoreExpected, nil
}

func requireKeys(item rawVector, path string) error {
	var missing []string
	if item.ID == nil {
		missing = append(missing, "id")
	}
	if item.Description == nil {
		missing = append(missing, "description")
	}
	if item.PayloadHTML == nil {
		missing = append(missing, "payload_html")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: vector missing keys %v", path, missing)
	}
	return nil
}

// itemContexts expands the payload_context field, which may be absent
// (defaulting to html), a single string, or a non-empty list of strings.
func itemContexts(item rawVector, path string) ([]PayloadContext, error) {
	if len(item.PayloadContext) == 0 {
		return []PayloadContext{ContextHTML}, nil
	}

	var single string
	if err := json.Unmarshal(item.PayloadContext, &single); err == nil {
		ctx, err := ParseContext(single)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []PayloadContext{ctx}, nil
	}

	var many []string
	if err := json.Unmarshal(item.PayloadContext, &many); err != nil {
		return nil, fmt.Errorf("%s: payload_context must be a string or list of strings", path)
	}
	if len(many) == 0 {
		return nil, fmt.Errorf("%s: payload_context list must be non-empty", path)
	}
	out := make([]PayloadContext, 0, len(many))
	for _, raw := range many {
		ctx, err := ParseContext(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, ctx)
	}
	return out, nil
}

func itemExpectedTags(item rawVector, ignoreExpected bool, path string) ([]ExpectedTag, error) {
	if ignoreExpected || item.ExpectedTags == nil {
		return nil, nil
	}
	// A declared empty list is meaningful: nothing may survive.
	out := make([]ExpectedTag, 0, len(*item.ExpectedTags))
	for _, raw := range *item.ExpectedTags {
		tag, err := ParseExpectedTag(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, tag)
	}
	return out, nil
}
