package whitelist

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Whitelister cleans HTML trees according to a Policy. It holds no
// mutable state and may be used from multiple goroutines; each call owns
// the tree it is given.
type Whitelister struct {
	policy *Policy
}

// New returns a Whitelister for a snapshot of p. If p is nil,
// DefaultPolicy is used. Later changes to p do not affect the
// Whitelister.
func New(p *Policy) *Whitelister {
	if p == nil {
		return &Whitelister{policy: DefaultPolicy()}
	}
	return &Whitelister{policy: p.Clone()}
}

// Policy returns the policy w applies.
func (w *Whitelister) Policy() *Policy { return w.policy }

var defaultWhitelister = New(nil)

// Clean cleans fragment with DefaultPolicy.
func Clean(fragment string) (string, error) {
	return defaultWhitelister.Clean(fragment)
}

// Clean parses fragment, cleans it and returns the serialized result.
func (w *Whitelister) Clean(fragment string) (string, error) {
	return w.CleanReader(strings.NewReader(fragment))
}

// CleanReader reads an HTML fragment from r, cleans it and returns the
// serialized result.
func (w *Whitelister) CleanReader(r io.Reader) (string, error) {
	root, err := parseFragment(r)
	if err != nil {
		return "", err
	}
	w.CleanNode(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("whitelist: render: %w", err)
	}
	return buf.String(), nil
}

// parseFragment parses r as the content of a <body> element and hangs
// the resulting nodes under a document node.
func parseFragment(r io.Reader) (*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, context)
	if err != nil {
		return nil, fmt.Errorf("whitelist: parse fragment: %w", err)
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// CleanNode cleans n according to its kind: text is left alone,
// elements and documents are cleaned with CleanTagNode, anything else is
// removed with CleanUnknownNode.
func (w *Whitelister) CleanNode(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.CleanStringNode(n)
	case html.ElementNode, html.DocumentNode:
		w.CleanTagNode(n)
	default:
		w.CleanUnknownNode(n)
	}
}

// CleanStringNode leaves text untouched; escaping happens on rendering.
func (w *Whitelister) CleanStringNode(n *html.Node) {}

// CleanUnknownNode removes n, including its children, from its parent.
func (w *Whitelister) CleanUnknownNode(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// CleanTagNode cleans the subtree rooted at n and then applies the tag
// policy to n itself. A document node is kept as the root holder.
//
// The subtree is processed children-first from an explicit worklist, so
// arbitrarily deep input does not grow the call stack. By the time an
// element is unwrapped its children are already clean.
func (w *Whitelister) CleanTagNode(n *html.Node) {
	for _, it := range w.worklist(n) {
		switch it.n.Type {
		case html.TextNode:
			w.CleanStringNode(it.n)
		case html.ElementNode:
			w.cleanElement(it.n, it.depth)
		case html.DocumentNode:
			// root holder
		default:
			w.CleanUnknownNode(it.n)
		}
	}
}

type workItem struct {
	n     *html.Node
	depth int
}

// worklist returns the subtree of root in post-order, children in
// document order. The order is fixed before any node is touched, so
// mutations made while cleaning do not disturb it. Dropped elements are
// not descended into.
func (w *Whitelister) worklist(root *html.Node) []workItem {
	var order []workItem
	stack := []workItem{{n: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, it)

		if it.n.Type == html.ElementNode && w.policy.Lookup(it.n.Data).IsDropped() {
			continue
		}
		for c := it.n.FirstChild; c != nil; c = c.NextSibling {
			stack = append(stack, workItem{n: c, depth: it.depth + 1})
		}
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

func (w *Whitelister) cleanElement(n *html.Node, depth int) {
	tp := w.policy.Lookup(n.Data)
	// Only kept elements are demoted past MaxDepth; a dropped element's
	// subtree was never cleaned and must not surface.
	if tp.action == actionAllow && w.policy.MaxDepth > 0 && depth > w.policy.MaxDepth {
		tp = Unwrap
	}

	switch tp.action {
	case actionAllow:
		tp.clean(n)
		for _, t := range w.policy.Transformers {
			if t(n) == nil {
				w.CleanUnknownNode(n)
				return
			}
		}
	case actionDrop:
		w.CleanUnknownNode(n)
	default:
		unwrap(n)
	}
}

// unwrap replaces n with its children. A node without a parent cannot be
// replaced; it loses its attributes instead.
func unwrap(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		n.Attr = nil
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.RemoveChild(n)
}
