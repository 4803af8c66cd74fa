package render

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
)

var toolLabels = map[string]string{
	"wikipedia":     "🌐 Wikipedia",
	"arxiv":         "📜 ArXiv",
	"tavily_search": "🔍 Web Search (Tavily)",
	"brave_search":  "🔍 Web Search (Brave)",
}

// ToolLabel is the display name of a tool call. Unlabelled tools show their
// name in title case.
func ToolLabel(name string) string {
	name = strings.ToLower(name)
	if label, ok := toolLabels[name]; ok {
		return label
	}
	return "🔧 " + titleCase(name)
}

// ResultLabel is the display name of a tool result.
func ResultLabel(name string) string {
	if label, ok := toolLabels[strings.ToLower(name)]; ok {
		return label
	}
	return "🔧 External Tool"
}

// titleCase upper-cases every letter that follows a non-letter.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// QueryPreview shows the argument a tool call is about: the "query" argument
// when present, otherwise the first argument by name, or "..." when there
// are none.
func QueryPreview(args map[string]any) string {
	if len(args) == 0 {
		return "..."
	}
	if q, ok := args["query"]; ok {
		return fmt.Sprint(q)
	}
	keys := slices.Sorted(maps.Keys(args))
	return fmt.Sprint(args[keys[0]])
}

// CallHeader is the heading of a tool call in a transcript.
func CallHeader(name string, args map[string]any) string {
	return ToolLabel(name) + " → Query: " + QueryPreview(args)
}

// ResultHeader is the heading of a tool result in a transcript.
func ResultHeader(name string) string {
	return ResultLabel(name) + " → Retrieved Data"
}
