package whitelist

import (
	"strconv"

	"golang.org/x/net/html"
)

// TransformFunc rewrites an attribute value. Returning ok == false drops
// the attribute.
type TransformFunc func(val string) (newVal string, ok bool)

type ruleKind uint8

const (
	ruleDeny ruleKind = iota
	ruleAllow
	ruleTransform
)

// Rule decides the fate of a single attribute. The zero value is Deny.
type Rule struct {
	kind ruleKind
	fn   TransformFunc
}

var (
	// Allow keeps the attribute value unchanged.
	Allow = Rule{kind: ruleAllow}

	// Deny drops the attribute.
	Deny = Rule{kind: ruleDeny}
)

// Transform returns a Rule that passes the attribute value through fn.
// A nil fn is equivalent to Deny.
func Transform(fn TransformFunc) Rule {
	if fn == nil {
		return Deny
	}
	return Rule{kind: ruleTransform, fn: fn}
}

// TransformString returns a Rule that always keeps the attribute and
// replaces its value with fn(value).
func TransformString(fn func(string) string) Rule {
	return Transform(func(v string) (string, bool) { return fn(v), true })
}

// TransformInt returns a Rule that replaces the attribute value with the
// decimal form of fn(value).
func TransformInt(fn func(string) int) Rule {
	return Transform(func(v string) (string, bool) { return strconv.Itoa(fn(v)), true })
}

func (r Rule) apply(val string) (string, bool) {
	switch r.kind {
	case ruleAllow:
		return val, true
	case ruleTransform:
		return r.fn(val)
	default:
		return "", false
	}
}

// RuleSet maps attribute names to rules. Attributes without an entry are
// dropped. Namespaced attributes are looked up as "ns:key", e.g.
// "xlink:href".
type RuleSet map[string]Rule

// ElementCleaner filters an element in place and returns it.
type ElementCleaner func(n *html.Node) *html.Node

// AttributeRule returns an ElementCleaner that decides every attribute of
// the element independently through rules. Kept attributes retain their
// original order.
func AttributeRule(rules RuleSet) ElementCleaner {
	return func(n *html.Node) *html.Node {
		n.Attr = filterAttrs(n.Attr, rules)
		return n
	}
}

// AllowWithoutAttributes removes every attribute from the element.
var AllowWithoutAttributes = AttributeRule(nil)

func filterAttrs(attrs []html.Attribute, rules RuleSet) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		val, ok := rules[attrName(a)].apply(a.Val)
		if !ok {
			continue
		}
		a.Val = val
		out = append(out, a)
	}
	// The tail still aliases dropped values.
	for i := len(out); i < len(attrs); i++ {
		attrs[i] = html.Attribute{}
	}
	return out
}

func attrName(a html.Attribute) string {
	if a.Namespace == "" {
		return a.Key
	}
	return a.Namespace + ":" + a.Key
}

// SetAttr sets (or adds) the attribute key=val on node n. It is
// intended for use inside Transformer functions.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// GetAttr returns the value of the named attribute on n, or "" if not
// present.
func GetAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// RemoveAttr removes the named attribute from n if present.
func RemoveAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace != "" || a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}
