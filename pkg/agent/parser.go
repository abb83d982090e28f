package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// parsedDocument is the structured view of a generated markdown document.
type parsedDocument struct {
	Title    string
	Sections map[string]string
	Lists    map[string][]string
}

// parseDocument extracts heading-indexed sections and bullet lists from
// generated markdown. Free-text fields come from sections, list fields
// from the bullets beneath the matching heading. It does not validate;
// scoring is the quality controller's job.
func parseDocument(raw string) parsedDocument {
	doc := parsedDocument{
		Sections: make(map[string]string),
		Lists:    make(map[string][]string),
	}

	var (
		currentKey   string
		currentBody  []string
		currentItems []string
	)
	flush := func() {
		if currentKey == "" {
			return
		}
		body := strings.TrimSpace(strings.Join(currentBody, "\n"))
		if body != "" {
			doc.Sections[currentKey] = body
		}
		if len(currentItems) > 0 {
			doc.Lists[currentKey] = currentItems
		}
		currentBody = nil
		currentItems = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "# ") && doc.Title == "":
			doc.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		case strings.HasPrefix(trimmed, "## "), strings.HasPrefix(trimmed, "### "):
			flush()
			currentKey = sectionKey(strings.TrimLeft(trimmed, "# "))
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			item := strings.TrimSpace(trimmed[2:])
			if item != "" {
				currentItems = append(currentItems, item)
			}
			currentBody = append(currentBody, line)
		default:
			if currentKey != "" {
				currentBody = append(currentBody, line)
			}
		}
	}
	flush()
	return doc
}

// sectionKey normalizes a heading into a lookup key.
func sectionKey(heading string) string {
	key := strings.ToLower(strings.TrimSpace(heading))
	key = strings.Trim(key, ":.")
	return strings.Join(strings.Fields(key), " ")
}

// section returns the first section whose key contains any of the names.
func (d parsedDocument) section(names ...string) string {
	for _, name := range names {
		for key, body := range d.Sections {
			if strings.Contains(key, name) {
				return body
			}
		}
	}
	return ""
}

// list returns the first bullet list whose key contains any of the names.
func (d parsedDocument) list(names ...string) []string {
	for _, name := range names {
		for key, items := range d.Lists {
			if strings.Contains(key, name) {
				return items
			}
		}
	}
	return nil
}

// epicHeading matches "## Epic 3: Payments" style headings at any level.
var epicHeading = regexp.MustCompile(`(?mi)^#{1,3}\s*epic\s+(\d+)\s*[:\-–]\s*(.+)$`)

// parseEpics splits the planner output into per-epic documents. Content
// runs from each epic heading to the next one (or end of document).
func parseEpics(raw string) []Epic {
	matches := epicHeading.FindAllStringSubmatchIndex(raw, -1)
	epics := make([]Epic, 0, len(matches))
	for i, m := range matches {
		number, err := strconv.Atoi(raw[m[2]:m[3]])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(raw[m[4]:m[5]])
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		epics = append(epics, Epic{
			Number:  number,
			Name:    name,
			Content: strings.TrimSpace(raw[m[0]:end]),
		})
	}
	return epics
}
