package scraper

import (
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// elementTexts walks root in document order and yields the text content of
// each element m matches as it is reached. A consumer that stops early
// leaves the rest of the tree unvisited. Each range restarts the walk.
func elementTexts(root *html.Node, m cascadia.Matcher) iter.Seq[string] {
	return func(yield func(string) bool) {
		var walk func(*html.Node) bool
		walk = func(n *html.Node) bool {
			if n.Type == html.ElementNode && m.Match(n) {
				if !yield(nodeText(n)) {
					return false
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if !walk(c) {
					return false
				}
			}
			return true
		}
		if root != nil {
			walk(root)
		}
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// scanSqft returns the first text mentioning "sqft" that carries a positive number.
func scanSqft(texts iter.Seq[string]) string {
	for t := range texts {
		if !strings.Contains(t, "sqft") {
			continue
		}
		if v, ok := parseDigits(t); ok && v > 0 {
			return t
		}
	}
	return ""
}

func scanBedrooms(texts iter.Seq[string]) string {
	for t := range texts {
		if !containsAny(t, "bd", "Bed") {
			continue
		}
		if _, ok := parseDigits(t); ok {
			return t
		}
	}
	return ""
}

func scanBathrooms(texts iter.Seq[string]) string {
	for t := range texts {
		if !containsAny(t, "ba", "Bath") {
			continue
		}
		if _, ok := parseDecimal(t); ok {
			return t
		}
	}
	return ""
}

// scanYearBuilt returns the four-digit year from the first "Built in" / "Year built" text.
func scanYearBuilt(texts iter.Seq[string]) string {
	for t := range texts {
		if !containsAny(t, "Built in", "Year built") {
			continue
		}
		if y := findYear(t); y != "" {
			return y
		}
	}
	return ""
}

// firstMatch tries selectors in order and returns the trimmed text of the
// first selector's first element that has any.
func firstMatch(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
