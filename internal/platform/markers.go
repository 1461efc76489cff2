package platform

import "strings"

// Root files are shared documents: each formula owns one section
// delimited by an HTML-comment marker pair so that hand-written
// content around it survives every merge.

const endMarker = "<!-- -->"

func beginMarker(name string) string {
	return "<!-- formula: " + name + " -->"
}

// ExtractSection returns the marker-delimited section for a formula
// inside a root document. ok is false when no matching section exists.
func ExtractSection(content, name string) (section string, ok bool) {
	begin := beginMarker(name)
	start := strings.Index(content, begin)
	if start < 0 {
		return "", false
	}
	rest := content[start+len(begin):]
	end := strings.Index(rest, endMarker)
	if end < 0 {
		return "", false
	}
	section = rest[:end]
	section = strings.TrimPrefix(section, "\n")
	section = strings.TrimSuffix(section, "\n")
	return section, true
}

// MergeSection writes a formula's section into a root document,
// replacing an existing marker pair or appending a new one. Merging a
// section that is already present verbatim returns the input
// unchanged, byte for byte.
func MergeSection(content, name, section string) string {
	begin := beginMarker(name)
	block := begin + "\n" + section + "\n" + endMarker

	start := strings.Index(content, begin)
	if start >= 0 {
		rest := content[start+len(begin):]
		end := strings.Index(rest, endMarker)
		if end >= 0 {
			old := content[start : start+len(begin)+end+len(endMarker)]
			if old == block {
				return content
			}
			return content[:start] + block + content[start+len(old):]
		}
	}

	if content == "" {
		return block + "\n"
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + block + "\n"
}

// RemoveSection deletes a formula's marker-delimited section. The
// document is returned unchanged when no matching section exists.
func RemoveSection(content, name string) string {
	begin := beginMarker(name)
	start := strings.Index(content, begin)
	if start < 0 {
		return content
	}
	rest := content[start+len(begin):]
	end := strings.Index(rest, endMarker)
	if end < 0 {
		return content
	}
	after := content[start+len(begin)+end+len(endMarker):]
	before := content[:start]
	before = strings.TrimSuffix(before, "\n")
	after = strings.TrimPrefix(after, "\n")
	if before != "" && after != "" {
		return before + "\n" + after
	}
	return before + after
}
