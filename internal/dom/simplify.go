// Package dom holds chromedp actions for form pages and a reducer that turns
// a page's markup into a compact snapshot for failure reports.
package dom

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var droppedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "meta": true, "link": true, "svg": true,
}

// keptTags maps a tag to whether it has a closing tag.
var keptTags = map[string]bool{
	"html": true, "head": true, "body": true, "title": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"p": true, "div": true, "span": true, "br": false, "hr": false,
	"ul": true, "ol": true, "li": true,
	"a": true, "button": true, "input": false, "textarea": true, "select": true, "option": true, "label": true,
	"form": true, "strong": true, "em": true,
}

var keptAttrs = map[string]bool{
	"id": true, "class": true, "role": true, "href": true,
	"type": true, "value": true, "placeholder": true, "name": true,
	"selected": true, "checked": true, "disabled": true, "readonly": true,
	"aria-label": true, "aria-live": true, "aria-invalid": true,
}

// booleanAttrs are written even when empty.
var booleanAttrs = map[string]bool{
	"value": true, "selected": true, "checked": true, "disabled": true, "readonly": true,
}

// Simplify reduces htmlContent to form-relevant markup and text, truncated
// to maxBytes (0 means no limit).
func Simplify(htmlContent string, maxBytes int) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := simplifyNode(&buf, doc); err != nil {
		return "", err
	}

	out := strings.TrimSpace(buf.String())
	if maxBytes > 0 && len(out) > maxBytes {
		out = out[:maxBytes] + "...[truncated]"
	}
	return out, nil
}

func simplifyChildren(w io.Writer, n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := simplifyNode(w, c); err != nil {
			return err
		}
	}
	return nil
}

func simplifyNode(w io.Writer, n *html.Node) error {
	switch n.Type {
	case html.ErrorNode, html.CommentNode, html.DoctypeNode:
		return nil
	case html.DocumentNode:
		return simplifyChildren(w, n)
	case html.TextNode:
		if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
			_, err := io.WriteString(w, html.EscapeString(trimmed)+" ")
			return err
		}
		return nil
	}

	// Element nodes from here on.
	if droppedTags[n.Data] {
		return nil
	}
	closes, kept := keptTags[n.Data]
	if !kept {
		return simplifyChildren(w, n)
	}

	var open strings.Builder
	open.WriteString("<" + n.Data)
	for _, a := range n.Attr {
		if !keptAttrs[a.Key] {
			continue
		}
		val := strings.TrimSpace(a.Val)
		if val == "" && !booleanAttrs[a.Key] {
			continue
		}
		open.WriteString(" " + a.Key + "=\"" + html.EscapeString(val) + "\"")
	}
	open.WriteString(">")
	if _, err := io.WriteString(w, open.String()); err != nil {
		return err
	}

	if err := simplifyChildren(w, n); err != nil {
		return err
	}
	if closes {
		if _, err := io.WriteString(w, "</"+n.Data+">"); err != nil {
			return err
		}
	}
	return nil
}
