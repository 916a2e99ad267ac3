package whitelist

import (
	"strings"

	"golang.org/x/net/html"
)

type tagAction uint8

const (
	actionUnwrap tagAction = iota
	actionAllow
	actionDrop
)

// TagPolicy says what happens to an element with a given tag name. The
// zero value is Unwrap.
type TagPolicy struct {
	action tagAction
	clean  ElementCleaner
}

var (
	// Unwrap removes the element but keeps its (cleaned) children in its
	// place.
	Unwrap = TagPolicy{action: actionUnwrap}

	// Drop removes the element together with everything inside it. It is
	// meant for raw-text containers such as script and style.
	Drop = TagPolicy{action: actionDrop}
)

// Allowed keeps the element and filters it through clean. A nil clean
// is AllowWithoutAttributes.
func Allowed(clean ElementCleaner) TagPolicy {
	if clean == nil {
		clean = AllowWithoutAttributes
	}
	return TagPolicy{action: actionAllow, clean: clean}
}

// AllowedWith keeps the element and filters its attributes through
// rules.
func AllowedWith(rules RuleSet) TagPolicy {
	return Allowed(AttributeRule(rules))
}

// IsAllowed reports whether the element itself survives cleaning.
func (tp TagPolicy) IsAllowed() bool { return tp.action == actionAllow }

// IsDropped reports whether the element is removed along with its
// content.
func (tp TagPolicy) IsDropped() bool { return tp.action == actionDrop }

// Transformer receives an allowed element after its attributes have been
// filtered and may mutate it in place. It must return n, or nil to
// remove the element and its content from the output.
type Transformer func(n *html.Node) *html.Node

// Policy defines what HTML is considered safe.
//
// New takes a snapshot of the Policy, so changes made after a
// Whitelister has been created do not reach it. Build policies with
// NewPolicy or Clone to get lower-cased tag names.
type Policy struct {
	// Tags maps lower-case tag names to their policy. Tags without an
	// entry are unwrapped.
	Tags map[string]TagPolicy

	// MaxDepth limits how deeply nested elements may be. Allowed elements
	// at a depth greater than MaxDepth are unwrapped; dropped elements are
	// dropped at any depth. Zero means unlimited.
	MaxDepth int

	// Transformers is an optional slice of Transformer functions applied
	// in order to every allowed element after attribute filtering.
	Transformers []Transformer
}

// Lookup returns the policy for tag. Unknown tags yield Unwrap.
func (p *Policy) Lookup(tag string) TagPolicy {
	if tp, ok := p.Tags[tag]; ok {
		return tp
	}
	return p.Tags[strings.ToLower(tag)]
}

// NewPolicy returns a Policy with a copy of tags whose keys are
// lower-cased. Changing tags afterwards does not affect the Policy. When
// two keys differ only in case, the one already in lower case wins.
func NewPolicy(tags map[string]TagPolicy) *Policy {
	return &Policy{Tags: lowerTags(tags)}
}

// Clone returns a copy of p whose tag table and transformer list can be
// modified without affecting p. Tag names are lower-cased as in
// NewPolicy.
func (p *Policy) Clone() *Policy {
	return &Policy{
		Tags:         lowerTags(p.Tags),
		MaxDepth:     p.MaxDepth,
		Transformers: append([]Transformer(nil), p.Transformers...),
	}
}

func lowerTags(tags map[string]TagPolicy) map[string]TagPolicy {
	out := make(map[string]TagPolicy, len(tags))
	for tag, tp := range tags {
		if lower := strings.ToLower(tag); lower != tag {
			out[lower] = tp
		}
	}
	for tag, tp := range tags {
		if strings.ToLower(tag) == tag {
			out[tag] = tp
		}
	}
	return out
}

// rawTextTags hold content that must never surface as text or markup.
var rawTextTags = []string{
	"script", "style", "template", "noscript", "iframe", "noembed",
	"noframes", "xmp", "plaintext", "title", "object", "embed",
}

// DefaultMaxDepth is the nesting limit of DefaultPolicy.
const DefaultMaxDepth = 512

// DefaultPolicy returns the baseline rich-text policy: headings,
// paragraphs, inline formatting, lists, links and images. Links and image
// sources must pass CheckURL; every other attribute is dropped. Script,
// style and similar containers are removed with their content and every
// other tag is unwrapped.
func DefaultPolicy() *Policy {
	tags := map[string]TagPolicy{
		"a": AllowedWith(RuleSet{"href": Transform(FilterURL)}),
		"img": AllowedWith(RuleSet{
			"src":    Transform(FilterURL),
			"width":  Allow,
			"height": Allow,
			"alt":    Allow,
		}),
	}
	for _, tag := range []string{
		"b", "i", "em", "strong", "sub", "sup",
		"br", "hr", "div", "span", "p", "blockquote",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
	} {
		tags[tag] = Allowed(AllowWithoutAttributes)
	}
	for _, tag := range rawTextTags {
		tags[tag] = Drop
	}

	p := NewPolicy(tags)
	p.MaxDepth = DefaultMaxDepth
	return p
}

// StrictPolicy returns a Policy that allows only the most basic inline
// formatting tags with no attributes at all, suitable for comment
// sections and user-generated content where you want minimal markup.
func StrictPolicy() *Policy {
	tags := make(map[string]TagPolicy)
	for _, tag := range []string{"b", "i", "em", "strong", "br", "p", "ul", "ol", "li"} {
		tags[tag] = Allowed(nil)
	}
	for _, tag := range rawTextTags {
		tags[tag] = Drop
	}

	p := NewPolicy(tags)
	p.MaxDepth = DefaultMaxDepth
	return p
}
