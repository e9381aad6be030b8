package agents

import (
	"regexp"
	"strings"
)

// codeBlockPattern matches ```json ... ``` or ``` ... ``` (with or without
// a language identifier).
var codeBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

// sanitizeJSON cleans up common LLM quirks in JSON output:
// smart/curly quotes instead of straight quotes, markdown code blocks
// wrapping the JSON, and extra text before or after the JSON object.
func sanitizeJSON(data []byte) []byte {
	content := string(data)

	// Replace smart/curly quotes with straight quotes. These are commonly
	// produced by LLMs and word processors.
	replacements := map[string]string{
		"“": `"`, // Left double quotation mark
		"”": `"`, // Right double quotation mark
		"„": `"`, // Double low-9 quotation mark
		"‟": `"`, // Double high-reversed-9 quotation mark
		"‘": `'`, // Left single quotation mark
		"’": `'`, // Right single quotation mark
		"‚": `'`, // Single low-9 quotation mark
		"‛": `'`, // Single high-reversed-9 quotation mark
		"«": `"`, // Left-pointing double angle quotation mark
		"»": `"`, // Right-pointing double angle quotation mark
		"‹": `'`, // Single left-pointing angle quotation mark
		"›": `'`, // Single right-pointing angle quotation mark
		"＂": `"`, // Fullwidth quotation mark
	}
	for old, new := range replacements {
		content = strings.ReplaceAll(content, old, new)
	}

	// Strip markdown code blocks.
	if matches := codeBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		content = matches[1]
	}

	// Extract the outermost { ... } if there is surrounding text.
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "{") {
		if startIdx := strings.Index(content, "{"); startIdx != -1 {
			content = content[startIdx:]
		}
	}
	if !strings.HasSuffix(content, "}") {
		if endIdx := strings.LastIndex(content, "}"); endIdx != -1 {
			content = content[:endIdx+1]
		}
	}

	return []byte(strings.TrimSpace(content))
}
