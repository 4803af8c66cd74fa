// Package render formats conversations for people: tool labels and query
// previews, sanitized HTML for the web page and styled text for terminals.
package render
