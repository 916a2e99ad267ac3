// Package whitelist cleans untrusted HTML fragments against an
// allow-list of tags, attributes and URL schemes.
//
// # Overview
//
// whitelist parses a fragment with golang.org/x/net/html, transforms the
// resulting node tree in place and renders it back to a string. Every
// element is looked up in a [Policy]:
//   - allowed elements are kept and their attributes filtered by a
//     [RuleSet] (see [AttributeRule])
//   - dropped elements ([Drop]) are removed together with their content;
//     DefaultPolicy drops script, style and similar raw-text containers
//   - all other elements are unwrapped: the tag goes, its cleaned
//     children stay in its place
//
// Comments, doctypes and other non-element, non-text nodes are removed.
// Text is never altered; it is escaped when rendered.
//
// # Attribute rules
//
// Each attribute is decided on its own by the [Rule] registered for its
// name: [Allow] keeps it, [Deny] (or no rule at all) drops it, and
// [Transform] rewrites the value or drops the attribute when the
// transform reports no value. [CheckURL] and [FilterURL] restrict link
// targets to relative URLs and the http, https, ftp, mailto and tel
// schemes.
//
// # Policies as data
//
// [LoadPolicy] builds a Policy from a YAML document so the allow-list can
// be changed without code. Rule names resolve through a [Registry].
//
// # Thread Safety
//
// A Whitelister and its Policy are read-only while cleaning and may be
// shared between goroutines. Policy values must not be mutated after
// first use.
//
// # Example
//
//	clean, err := whitelist.Clean(userInput)
package whitelist
