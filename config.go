package whitelist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidPolicy is returned when a policy document is malformed.
	ErrInvalidPolicy = errors.New("whitelist: invalid policy")

	// ErrUnknownRule is returned when a policy document names a rule that
	// is neither built in nor registered.
	ErrUnknownRule = errors.New("whitelist: unknown rule")
)

// Rule names understood by every Registry.
const (
	RuleAllow = "allow"
	RuleDeny  = "deny"
)

// Registry resolves the rule names used in policy documents to rules.
type Registry struct {
	transforms map[string]TransformFunc
}

// NewRegistry returns a Registry that knows only "allow" and "deny".
func NewRegistry() *Registry {
	return &Registry{transforms: make(map[string]TransformFunc)}
}

// DefaultRegistry returns a Registry with the built-in transforms:
//
//	url    keep the value if it passes CheckURL
//	int    keep the value if it is a non-negative 32-bit integer
//	lower  lower-case the value
//	trim   strip surrounding whitespace
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("url", FilterURL)
	r.Register("int", filterInt)
	r.Register("lower", func(v string) (string, bool) { return strings.ToLower(v), true })
	r.Register("trim", func(v string) (string, bool) { return strings.TrimSpace(v), true })
	return r
}

// Register makes fn available under name, replacing any previous
// transform of that name. Names are case-insensitive.
func (r *Registry) Register(name string, fn TransformFunc) {
	r.transforms[strings.ToLower(name)] = fn
}

// Rule resolves name.
func (r *Registry) Rule(name string) (Rule, error) {
	switch name = strings.ToLower(strings.TrimSpace(name)); name {
	case RuleAllow:
		return Allow, nil
	case RuleDeny:
		return Deny, nil
	}
	if fn, ok := r.transforms[name]; ok {
		return Transform(fn), nil
	}
	return Deny, fmt.Errorf("%w: %q", ErrUnknownRule, name)
}

func filterInt(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if _, err := strconv.ParseUint(v, 10, 32); err != nil {
		return "", false
	}
	return v, true
}

// policyDoc is the YAML form of a Policy:
//
//	max_depth: 256
//	drop: [script, style]
//	tags:
//	  a: {href: url}
//	  b: {}
type policyDoc struct {
	MaxDepth int                          `yaml:"max_depth"`
	Drop     []string                     `yaml:"drop"`
	Tags     map[string]map[string]string `yaml:"tags"`
}

// LoadPolicy decodes a YAML policy document from r, resolving rule names
// through reg. If reg is nil, DefaultRegistry is used.
func LoadPolicy(r io.Reader, reg *Registry) (*Policy, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}

	var doc policyDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPolicy)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return doc.policy(reg)
}

// LoadPolicyFile reads a YAML policy document from path.
func LoadPolicyFile(path string, reg *Registry) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("whitelist: open policy: %w", err)
	}
	defer f.Close()

	p, err := LoadPolicy(f, reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func (doc *policyDoc) policy(reg *Registry) (*Policy, error) {
	if doc.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: negative max_depth %d", ErrInvalidPolicy, doc.MaxDepth)
	}
	tags := make(map[string]TagPolicy, len(doc.Tags)+len(doc.Drop))

	for name, attrs := range doc.Tags {
		tag := strings.ToLower(strings.TrimSpace(name))
		if tag == "" {
			return nil, fmt.Errorf("%w: empty tag name", ErrInvalidPolicy)
		}
		if _, dup := tags[tag]; dup {
			return nil, fmt.Errorf("%w: tag %s listed more than once", ErrInvalidPolicy, tag)
		}
		rules := make(RuleSet, len(attrs))
		for key, ruleName := range attrs {
			attr := strings.ToLower(key)
			if _, dup := rules[attr]; dup {
				return nil, fmt.Errorf("%w: tag %s attribute %s listed more than once", ErrInvalidPolicy, tag, attr)
			}
			rule, err := reg.Rule(ruleName)
			if err != nil {
				return nil, fmt.Errorf("tag %s attribute %s: %w", tag, attr, err)
			}
			rules[attr] = rule
		}
		tags[tag] = AllowedWith(rules)
	}

	for _, name := range doc.Drop {
		tag := strings.ToLower(strings.TrimSpace(name))
		if tag == "" {
			return nil, fmt.Errorf("%w: empty tag name", ErrInvalidPolicy)
		}
		if tags[tag].IsAllowed() {
			return nil, fmt.Errorf("%w: tag %s is both allowed and dropped", ErrInvalidPolicy, tag)
		}
		tags[tag] = Drop
	}

	p := NewPolicy(tags)
	p.MaxDepth = doc.MaxDepth
	return p, nil
}
