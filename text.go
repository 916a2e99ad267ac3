package whitelist

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags returns the text content of fragment after cleaning it with
// DefaultPolicy. Dropped elements such as script contribute nothing.
func StripTags(fragment string) (string, error) {
	return defaultWhitelister.StripTags(fragment)
}

// StripTags cleans fragment and returns its text content with character
// references decoded.
func (w *Whitelister) StripTags(fragment string) (string, error) {
	root, err := parseFragment(strings.NewReader(fragment))
	if err != nil {
		return "", err
	}
	w.CleanNode(root)

	var sb strings.Builder
	for n := root.FirstChild; n != nil; n = nextInTree(root, n) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
	}
	return sb.String(), nil
}

// nextInTree returns the node after n in a pre-order walk of root, or
// nil when the walk is done.
func nextInTree(root, n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for n != root {
		if n.NextSibling != nil {
			return n.NextSibling
		}
		n = n.Parent
	}
	return nil
}
