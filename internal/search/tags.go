package search

import "strings"

// SplitTags splits a comma separated tag list, trimming blanks and dropping
// empty entries.
func SplitTags(s string) []string {
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// HasTag reports whether tag is already in the list. Matching is exact and
// case-sensitive.
func HasTag(list, tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, t := range SplitTags(list) {
		if t == tag {
			return true
		}
	}
	return false
}

// AppendTag adds tag to the list unless present. The existing text is kept
// as typed; the new tag is joined with ", ".
func AppendTag(list, tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || HasTag(list, tag) {
		return list
	}
	if len(SplitTags(list)) == 0 {
		return tag
	}
	return list + ", " + tag
}

// MergeTags appends each of extra to list, skipping duplicates.
func MergeTags(list string, extra []string) string {
	for _, t := range extra {
		list = AppendTag(list, t)
	}
	return list
}
