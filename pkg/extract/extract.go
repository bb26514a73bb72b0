// Package extract pulls abbreviated follower counts out of profile page markup.
package extract

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Number matches a count as shown on profile pages: digits with "." or "," separators and an
// optional K/M/B suffix. Platform patterns embed it in a capture group.
const Number = `[0-9][0-9.,]*[KMBkmb]?`

// Pattern describes where a platform publishes its count.
//
// Meta lists meta tag keys (matched against property or name) whose content is searched with
// MetaCount. Inline is searched over the whole document. The first capture group of either
// regex is the count. Meta keys are tried in order before Inline.
type Pattern struct {
	MetaCount *regexp.Regexp
	Inline    *regexp.Regexp
	Meta      []string
}

// Count returns the first count the pattern finds in htmlContent.
func Count(htmlContent string, p Pattern) (string, bool) {
	if htmlContent == "" {
		return "", false
	}

	if p.MetaCount != nil && len(p.Meta) > 0 {
		doc := parse(htmlContent)
		for _, key := range p.Meta {
			content := metaContent(doc, htmlContent, key)
			if content == "" {
				continue
			}
			if n, ok := firstGroup(p.MetaCount, content); ok {
				return n, true
			}
		}
	}

	if p.Inline != nil {
		if n, ok := firstGroup(p.Inline, htmlContent); ok {
			return n, true
		}
	}
	return "", false
}

// Format joins a count with its localized unit label: Format("12.3K", "Seguidores") is "12.3K Seguidores".
func Format(count, label string) string {
	count = strings.TrimSpace(count)
	label = strings.TrimSpace(label)
	if label == "" {
		return count
	}
	return count + " " + label
}

// NormalizeCount trims the count and upper-cases its unit suffix. It never expands the abbreviation.
func NormalizeCount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".,")
	if s == "" {
		return ""
	}
	last := s[len(s)-1]
	switch last {
	case 'k', 'm', 'b':
		return s[:len(s)-1] + strings.ToUpper(string(last))
	default:
		return s
	}
}

// MetaContent returns the content of the first meta tag whose property or name equals key.
func MetaContent(htmlContent, key string) string {
	return metaContent(parse(htmlContent), htmlContent, key)
}

func parse(htmlContent string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}
	return doc
}

func metaContent(doc *goquery.Document, htmlContent, key string) string {
	if doc == nil {
		return metaContentRegex(htmlContent, key)
	}
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range []string{"property", "name", "itemprop"} {
			if v, ok := s.Attr(attr); ok && strings.EqualFold(strings.TrimSpace(v), key) {
				content = strings.TrimSpace(s.AttrOr("content", ""))
				return false
			}
		}
		return true
	})
	return content
}

// metaContentRegex handles both attribute orders when the markup cannot be parsed.
func metaContentRegex(htmlContent, key string) string {
	q := regexp.QuoteMeta(key)
	for _, expr := range []string{
		`(?i)<meta[^>]+(?:property|name)=["']` + q + `["'][^>]+content=["']([^"']*)["']`,
		`(?i)<meta[^>]+content=["']([^"']*)["'][^>]+(?:property|name)=["']` + q + `["']`,
	} {
		if m := regexp.MustCompile(expr).FindStringSubmatch(htmlContent); len(m) > 1 {
			return strings.TrimSpace(html.UnescapeString(m[1]))
		}
	}
	return ""
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	n := NormalizeCount(m[1])
	if n == "" {
		return "", false
	}
	return n, true
}
