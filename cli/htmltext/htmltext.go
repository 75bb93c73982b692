// Package htmltext turns HTML pages into plain text suitable for upload.
package htmltext

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	"body",
}

// FromHTML extracts the readable text of an HTML document.
func FromHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, nav, header, footer").Remove()

	var content string
	for _, selector := range contentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.First().Text()
			break
		}
	}
	if content == "" {
		content = doc.Text()
	}

	title := strings.TrimSpace(doc.Find("title").Text())
	content = collapse(content)
	if title != "" && !strings.HasPrefix(content, title) {
		content = title + "\n\n" + content
	}
	return content, nil
}

// collapse squeezes runs of spaces and drops blank lines.
func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// IsHTML reports whether path looks like an HTML file.
func IsHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// ReadFile returns the upload body for path: HTML is converted to text,
// everything else is sent as is.
func ReadFile(path string) ([]byte, error) {
	if !IsHTML(path) {
		return os.ReadFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	text, err := FromHTML(f)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}
