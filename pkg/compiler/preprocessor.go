package compiler

import (
	"fmt"
	"sort"
	"strings"

	"gobf/pkg/errs"
	"gobf/pkg/instr"
)

// DefKind distinguishes the three declaration forms.
type DefKind int

const (
	KindMacro     DefKind = iota // $ : expanded inline at every call site
	KindProcedure                // @ : expanded inline, may not recurse
	KindFunction                 // § : expanded lazily per invocation, may recurse
)

func (k DefKind) String() string {
	switch k {
	case KindMacro:
		return "macro"
	case KindProcedure:
		return "procedure"
	case KindFunction:
		return "function"
	}
	return fmt.Sprintf("DefKind(%d)", int(k))
}

// Definition is a named, parameterised body of source text.
type Definition struct {
	Name   string
	Kind   DefKind
	Params []string
	Body   string
	Line   int
}

// Definitions is the name table of one run. Macros, procedures and functions
// share a single namespace.
type Definitions struct {
	defs map[string]*Definition
}

func NewDefinitions() *Definitions {
	return &Definitions{defs: make(map[string]*Definition)}
}

// Declare adds def, failing if its name is already taken or is a built-in word.
func (d *Definitions) Declare(def *Definition) error {
	if _, builtin := instr.FromWord(def.Name); builtin {
		return fmt.Errorf("%w: %s on line %d is a built-in instruction", errs.ErrDuplicateDefinition, def.Name, def.Line)
	}
	if prev, exists := d.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s on line %d is already defined as a %s on line %d",
			errs.ErrDuplicateDefinition, def.Name, def.Line, prev.Kind, prev.Line)
	}
	d.defs[def.Name] = def
	return nil
}

func (d *Definitions) Lookup(name string) (*Definition, bool) {
	def, ok := d.defs[name]
	return def, ok
}

func (d *Definitions) Len() int { return len(d.defs) }

// All returns every definition sorted by name.
func (d *Definitions) All() []*Definition {
	out := make([]*Definition, 0, len(d.defs))
	for _, def := range d.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// parseDeclaration parses "name(p1;p2) = body" (the text after the sigil).
func parseDeclaration(kind DefKind, text string, line int) (*Definition, error) {
	head, body, ok := strings.Cut(text, "=")
	if !ok {
		return nil, fmt.Errorf("%w: %s declaration without '=' on line %d", errs.ErrInvalidInstruction, kind, line)
	}
	name, params, _, err := parseCall(strings.TrimSpace(head))
	if err != nil {
		return nil, fmt.Errorf("%w on line %d", err, line)
	}
	if !isIdentifier(name) {
		return nil, fmt.Errorf("%w: invalid %s name %q on line %d", errs.ErrInvalidInstruction, kind, name, line)
	}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if !isIdentifier(p) {
			return nil, fmt.Errorf("%w: invalid parameter %q of %s on line %d", errs.ErrInvalidInstruction, p, name, line)
		}
		if seen[p] {
			return nil, fmt.Errorf("%w: parameter %q of %s repeated on line %d", errs.ErrInvalidInstruction, p, name, line)
		}
		seen[p] = true
	}
	return &Definition{
		Name:   name,
		Kind:   kind,
		Params: params,
		Body:   strings.TrimSpace(body),
		Line:   line,
	}, nil
}

// Expand substitutes args for the formal parameters of def.
func (def *Definition) Expand(args []string) (string, error) {
	if len(args) != len(def.Params) {
		return "", fmt.Errorf("%w: %s %s expects %d arguments, got %d",
			errs.ErrInvalidInstruction, def.Kind, def.Name, len(def.Params), len(args))
	}
	if len(args) == 0 {
		return def.Body, nil
	}
	bindings := make(map[string]string, len(args))
	for i, p := range def.Params {
		bindings[p] = args[i]
	}
	return substitute(def.Body, bindings), nil
}

// substitute replaces whole identifiers found in bindings in a single pass,
// so a substituted argument is never rescanned for other parameter names.
func substitute(input string, bindings map[string]string) string {
	var sb strings.Builder
	runes := []rune(input)
	n := len(runes)
	i := 0
	for i < n {
		if !isIdentStart(runes[i]) {
			sb.WriteRune(runes[i])
			i++
			continue
		}
		start := i
		for i < n && isIdentPart(runes[i]) {
			i++
		}
		word := string(runes[start:i])
		if v, ok := bindings[word]; ok {
			sb.WriteString(v)
		} else {
			sb.WriteString(word)
		}
	}
	return sb.String()
}

// parseCall splits "name" or "name(a;b;...)" into its parts. hasParens is
// true when an argument list was written, even an empty one.
func parseCall(word string) (name string, args []string, hasParens bool, err error) {
	open := strings.IndexByte(word, '(')
	if open < 0 {
		return word, nil, false, nil
	}
	if !strings.HasSuffix(word, ")") {
		return "", nil, false, fmt.Errorf("%w: malformed call %q", errs.ErrInvalidInstruction, word)
	}
	name = strings.TrimSpace(word[:open])
	inner := word[open+1 : len(word)-1]
	if strings.TrimSpace(inner) == "" {
		return name, []string{}, true, nil
	}

	depth := 0
	var cur strings.Builder
	for _, r := range inner {
		switch {
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return "", nil, false, fmt.Errorf("%w: unbalanced parentheses in %q", errs.ErrInvalidInstruction, word)
			}
		case r == ';' && depth == 0:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	if depth != 0 {
		return "", nil, false, fmt.Errorf("%w: unbalanced parentheses in %q", errs.ErrInvalidInstruction, word)
	}
	args = append(args, strings.TrimSpace(cur.String()))
	return name, args, true, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !isIdentStart(r) {
				return false
			}
			continue
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}
