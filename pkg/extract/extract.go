// Package extract pulls plain text out of uploaded documents so they can
// be fed to the generator as literal user text.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Text extracts UTF-8 text from a document based on its filename extension.
// PDF and HTML get dedicated parsers; everything else is treated as plain text.
func Text(filename string, r io.Reader) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return fromPDF(r)
	case ".html", ".htm", ".xhtml":
		return fromHTML(r)
	default:
		return fromPlain(r)
	}
}

func fromPlain(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	text := normalizeText(string(data))
	if text == "" {
		return "", fmt.Errorf("no text extracted")
	}
	return text, nil
}

func fromHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	text := normalizeText(nodeText(doc))
	if text == "" {
		return "", fmt.Errorf("no text extracted from html")
	}
	return text, nil
}

// fromPDF spools the upload to a temp file because the PDF reader needs
// random access.
func fromPDF(r io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "briefly-upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("spool pdf: %w", err)
	}
	defer func() {
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("spool pdf: %w", err)
	}

	file, reader, err := pdf.Open(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely.
			continue
		}
		sb.WriteString(text)
		sb.WriteString(" ")
	}
	text := normalizeText(sb.String())
	if text == "" {
		return "", fmt.Errorf("no text extracted from pdf")
	}
	return text, nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

func nodeText(n *html.Node) string {
	var buf bytes.Buffer
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && (node.Data == "p" || node.Data == "br" || node.Data == "div" || node.Data == "li") {
			buf.WriteString(" ")
		}
	}
	walk(n)
	return buf.String()
}
