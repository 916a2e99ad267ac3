package whitelist_test

import (
	"strings"
	"testing"

	"github.com/njchilds90/whitelist"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"pgregory.net/rapid"
)

var (
	genTag  = rapid.SampledFrom([]string{"b", "i", "p", "div", "a", "img", "span", "ul", "li", "foo", "script", "style", "table", "td", "section", "iframe", "object", "template", "noscript"})
	genAttr = rapid.SampledFrom([]string{"href", "src", "class", "onclick", "style", "width", "alt", "title"})
	genVal  = rapid.SampledFrom([]string{"https://example.com", "/rel", "javascript:alert(1)", "jav&#x09;ascript:x", "data:text/html,x", "10", "x y"})
	genText = rapid.StringMatching(`[a-zA-Z0-9 &;]{0,10}`)
)

// genFragment draws a random, possibly unbalanced, HTML fragment.
func genFragment(t *rapid.T) string {
	var sb strings.Builder
	n := rapid.IntRange(0, 40).Draw(t, "tokens")
	for i := 0; i < n; i++ {
		switch rapid.IntRange(0, 3).Draw(t, "kind") {
		case 0:
			sb.WriteString("<" + genTag.Draw(t, "open"))
			for j := rapid.IntRange(0, 3).Draw(t, "attrs"); j > 0; j-- {
				sb.WriteString(" " + genAttr.Draw(t, "attr") + `="` + genVal.Draw(t, "val") + `"`)
			}
			sb.WriteString(">")
		case 1:
			sb.WriteString("</" + genTag.Draw(t, "close") + ">")
		case 2:
			sb.WriteString("<!--" + genText.Draw(t, "comment") + "-->")
		default:
			sb.WriteString(genText.Draw(t, "text"))
		}
	}
	return sb.String()
}

// allowedAttrs mirrors the attribute rules of DefaultPolicy.
var allowedAttrs = map[string]map[string]bool{
	"a":   {"href": true},
	"img": {"src": true, "width": true, "height": true, "alt": true},
}

// checkAllowedMarkup fails t unless out holds only elements, attributes
// and URLs that policy allows.
func checkAllowedMarkup(t *rapid.T, policy *whitelist.Policy, in, out string) {
	lower := strings.ToLower(out)
	for _, bad := range []string{"<script", "<object", "<template", "<iframe"} {
		if strings.Contains(lower, bad) {
			t.Fatalf("%s> survived: %q -> %q", bad, in, out)
		}
	}

	nodes, err := html.ParseFragment(strings.NewReader(out), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		t.Fatalf("output does not parse: %v", err)
	}
	var check func(n *html.Node)
	check = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if !policy.Lookup(n.Data).IsAllowed() {
				t.Fatalf("disallowed <%s> in %q (input %q)", n.Data, out, in)
			}
			for _, a := range n.Attr {
				if !allowedAttrs[n.Data][a.Key] {
					t.Fatalf("disallowed attribute %s on <%s> in %q (input %q)", a.Key, n.Data, out, in)
				}
				if (a.Key == "href" || a.Key == "src") && !whitelist.CheckURL(a.Val) {
					t.Fatalf("unsafe URL %q in %q (input %q)", a.Val, out, in)
				}
			}
		case html.CommentNode:
			t.Fatalf("comment survived in %q", out)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			check(c)
		}
	}
	for _, n := range nodes {
		check(n)
	}
}

func TestProperty_OutputOnlyContainsAllowedMarkup(t *testing.T) {
	policy := whitelist.DefaultPolicy()
	w := whitelist.New(policy)

	rapid.Check(t, func(t *rapid.T) {
		in := genFragment(t)
		out, err := w.Clean(in)
		if err != nil {
			t.Fatalf("Clean(%q): %v", in, err)
		}
		checkAllowedMarkup(t, policy, in, out)
	})
}

func TestProperty_ShallowMaxDepth(t *testing.T) {
	// With a tiny depth limit most elements sit past it, including dropped
	// containers holding unsafe markup.
	policy := whitelist.DefaultPolicy()
	policy.MaxDepth = 2
	w := whitelist.New(policy)

	rapid.Check(t, func(t *rapid.T) {
		in := genFragment(t)
		out, err := w.Clean(in)
		if err != nil {
			t.Fatalf("Clean(%q): %v", in, err)
		}
		checkAllowedMarkup(t, policy, in, out)
	})
}

func TestProperty_TextIsPreserved(t *testing.T) {
	// Without drop rules every text node survives, so the text content is
	// unchanged by cleaning.
	p := &whitelist.Policy{Tags: map[string]whitelist.TagPolicy{"b": whitelist.Allowed(nil)}}
	w := whitelist.New(p)
	keepAll := whitelist.New(&whitelist.Policy{Tags: map[string]whitelist.TagPolicy{
		"b": whitelist.Allowed(nil), "i": whitelist.Allowed(nil), "p": whitelist.Allowed(nil), "div": whitelist.Allowed(nil),
	}})

	rapid.Check(t, func(t *rapid.T) {
		var sb strings.Builder
		for n := rapid.IntRange(0, 20).Draw(t, "tokens"); n > 0; n-- {
			tag := rapid.SampledFrom([]string{"b", "i", "p", "div"}).Draw(t, "tag")
			if rapid.Bool().Draw(t, "close") {
				sb.WriteString("</" + tag + ">")
			} else {
				sb.WriteString("<" + tag + ">")
			}
			sb.WriteString(rapid.StringMatching(`[a-z ]{0,6}`).Draw(t, "text"))
		}
		in := sb.String()

		want, err := keepAll.StripTags(in)
		if err != nil {
			t.Fatal(err)
		}
		got, err := w.StripTags(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("text changed for %q: got %q want %q", in, got, want)
		}
	})
}

func TestProperty_AttributeRuleNeverAddsKeys(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		keys := rapid.SliceOfNDistinct(genAttr, 0, 5, rapid.ID[string]).Draw(t, "keys")
		n := &html.Node{Type: html.ElementNode, Data: "b"}
		for _, k := range keys {
			n.Attr = append(n.Attr, html.Attribute{Key: k, Val: genVal.Draw(t, "val")})
		}

		rules := whitelist.RuleSet{}
		for _, k := range keys {
			if rapid.Bool().Draw(t, "allow "+k) {
				rules[k] = whitelist.Allow
			}
		}
		whitelist.AttributeRule(rules)(n)

		var kept []string
		for _, k := range keys {
			if _, ok := rules[k]; ok {
				kept = append(kept, k)
			}
		}
		if len(n.Attr) != len(kept) {
			t.Fatalf("kept %d attributes, want %d", len(n.Attr), len(kept))
		}
		for i, a := range n.Attr {
			if a.Key != kept[i] {
				t.Fatalf("attribute %d is %s, want %s", i, a.Key, kept[i])
			}
		}
	})
}

func TestProperty_CheckURL(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rest := rapid.String().Draw(t, "rest")
		if whitelist.CheckURL("javascript:" + rest) {
			t.Fatalf("javascript:%q accepted", rest)
		}
		if !whitelist.CheckURL("https:" + rest) {
			t.Fatalf("https:%q rejected", rest)
		}
	})
}
