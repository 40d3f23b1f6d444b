package service

import (
	"strings"

	"github.com/memvault/memvault/internal/errs"
)

const maxTagLength = 100

// NormalizeTags exposes the tags oneOf{array,string} normalization (spec
// §6.1 schema rules) to callers outside this package, e.g. the MCP and HTTP
// surfaces turning a raw JSON "tags" field into []string before calling
// SearchByTag/DeleteByTags.
func NormalizeTags(raw interface{}) ([]string, *errs.Error) {
	tags, err := coerceTags(raw)
	if err != nil {
		return nil, err
	}
	return dedupeTags(tags)
}

// normalizeTags implements spec §4.5.1: tags may arrive as nil, a single
// string, a comma-separated string, or an array; metadata.tags (if present)
// is unioned in; the result is deduplicated case-sensitively while
// preserving first-seen order. Grounded on the teacher's
// internal/importer/markdown.go extractTags, which handles the same
// []interface{}-vs-string frontmatter ambiguity.
func normalizeTags(raw interface{}, metadata map[string]interface{}) ([]string, *errs.Error) {
	tags, err := coerceTags(raw)
	if err != nil {
		return nil, err
	}

	if metadata != nil {
		if mt, ok := metadata["tags"]; ok {
			extra, err := coerceTags(mt)
			if err != nil {
				return nil, err
			}
			tags = append(tags, extra...)
		}
	}

	return dedupeTags(tags)
}

// coerceTags handles the four accepted shapes for a single tags field.
func coerceTags(raw interface{}) ([]string, *errs.Error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errs.Validation("tags: array elements must be strings, got %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case string:
		if v == "" {
			return nil, nil
		}
		if !strings.Contains(v, ",") {
			return []string{strings.TrimSpace(v)}, nil
		}
		var out []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
		return out, nil
	default:
		return nil, errs.Validation("tags: unsupported type %T", raw)
	}
}

// dedupeTags removes duplicates (case-sensitive, first occurrence wins) and
// enforces the per-tag length limit.
func dedupeTags(tags []string) ([]string, *errs.Error) {
	if len(tags) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if len(t) > maxTagLength {
			return nil, errs.Validation("tags: %q exceeds %d characters", t, maxTagLength)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}
