package typeinfo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// maxAliasDepth bounds typedef chains.
const maxAliasDepth = 64

// Registry is the session-scoped table of types and symbols.
//
// A registry is populated while a debug session attaches and then sealed.
// Sealed registries are read-only and safe for concurrent use; derived types
// (pointers, arrays) composed by Resolve are cached so that repeated
// resolution of the same expression yields the same *Type.
type Registry struct {
	mu      sync.RWMutex
	arch    Arch
	types   map[string]*Type
	aliases map[string]string
	symbols map[string]*Symbol
	order   []*Symbol // declaration order
	sealed  bool

	derived sync.Map // normalized expression -> *Type
}

// NewRegistry creates a registry preloaded with the builtin types of arch.
func NewRegistry(arch Arch) *Registry {
	return &Registry{
		arch:    arch,
		types:   Builtins(arch),
		aliases: make(map[string]string),
		symbols: make(map[string]*Symbol),
	}
}

// Arch returns the target data model.
func (r *Registry) Arch() Arch {
	return r.arch
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether the registry is read-only.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Define registers a named type.
func (r *Registry) Define(t *Type) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: define needs a named type", ErrInvalidType)
	}
	name := stripTag(t.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	if existing, ok := r.types[name]; ok && existing != t {
		return fmt.Errorf("%w: type %s", ErrDuplicate, name)
	}
	if _, ok := r.aliases[name]; ok {
		return fmt.Errorf("%w: type %s is an alias", ErrDuplicate, name)
	}
	r.types[name] = t
	return nil
}

// Alias registers a typedef/using alias for a type expression.
func (r *Registry) Alias(name, target string) error {
	name = stripTag(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("%w: empty alias name", ErrInvalidType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	if _, ok := r.types[name]; ok {
		return fmt.Errorf("%w: alias %s shadows a type", ErrDuplicate, name)
	}
	if existing, ok := r.aliases[name]; ok && existing != target {
		return fmt.Errorf("%w: alias %s", ErrDuplicate, name)
	}
	r.aliases[name] = target
	return nil
}

// AddSymbol registers a variable.
func (r *Registry) AddSymbol(s *Symbol) error {
	if s == nil || s.Name == "" || s.Type == nil {
		return fmt.Errorf("%w: symbol needs a name and a type", ErrInvalidType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrSealed
	}
	key := s.QualifiedName()
	if _, ok := r.symbols[key]; ok {
		return fmt.Errorf("%w: symbol %s", ErrDuplicate, key)
	}
	r.symbols[key] = s
	r.order = append(r.order, s)
	return nil
}

// Types returns the names of all user-defined and builtin types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types)+len(r.aliases))
	for name := range r.types {
		names = append(names, name)
	}
	for name := range r.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Symbol looks a symbol up by name. Function-scoped symbols can be named
// either as "function::name" or, if the name is unambiguous, bare.
func (r *Registry) Symbol(name string) (*Symbol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.symbols[name]; ok {
		return s, nil
	}

	var found *Symbol
	for _, s := range r.order {
		if s.Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("symbol %q is ambiguous (%s, %s): %w",
				name, found.QualifiedName(), s.QualifiedName(), &NotFoundError{Symbol: true, Name: name})
		}
		found = s
	}
	if found == nil {
		return nil, &NotFoundError{Symbol: true, Name: name}
	}
	return found, nil
}

// LookupSymbol resolves name as seen from inside function: locals and
// static locals of the function shadow globals.
func (r *Registry) LookupSymbol(name, function string) (*Symbol, error) {
	r.mu.RLock()
	if function != "" {
		if s, ok := r.symbols[function+"::"+name]; ok {
			r.mu.RUnlock()
			return s, nil
		}
	}
	if s, ok := r.symbols[name]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()
	return r.Symbol(name)
}

// Globals returns every symbol with static storage, ordered by address and
// then by name.
func (r *Registry) Globals() []*Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Symbol
	for _, s := range r.order {
		if s.HasFixedAddress() {
			result = append(result, s)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Address != result[j].Address {
			return result[i].Address < result[j].Address
		}
		return result[i].QualifiedName() < result[j].QualifiedName()
	})
	return result
}

// Locals returns the stack locals of function in declaration order.
func (r *Registry) Locals(function string) []*Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Symbol
	for _, s := range r.order {
		if s.Function == function && s.Storage == StorageStackLocal {
			result = append(result, s)
		}
	}
	return result
}

// Resolve returns the type named by expr. It understands elaborated
// specifiers ("struct Node"), cv-qualifiers, typedef aliases and the
// declarator suffixes "*", "&" and "[N]" ("Node *", "int [2][3]").
func (r *Registry) Resolve(expr string) (*Type, error) {
	norm := normalizeExpr(expr)
	if norm == "" {
		return nil, &NotFoundError{Name: expr}
	}
	if t, ok := r.derived.Load(norm); ok {
		return t.(*Type), nil
	}
	t, err := r.resolve(norm, 0)
	if err != nil {
		return nil, err
	}
	if actual, loaded := r.derived.LoadOrStore(norm, t); loaded {
		return actual.(*Type), nil
	}
	return t, nil
}

func (r *Registry) resolve(norm string, depth int) (*Type, error) {
	if depth > maxAliasDepth {
		return nil, fmt.Errorf("%w: %s", ErrAliasCycle, norm)
	}

	base, ops, dims, err := splitDeclarator(norm)
	if err != nil {
		return nil, err
	}

	t, err := r.resolveBase(base, depth)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if op == '*' {
			t = PointerTo(t, r.arch)
		} else {
			t = ReferenceTo(t, r.arch)
		}
	}
	for i := len(dims) - 1; i >= 0; i-- {
		t = ArrayOf(t, dims[i])
	}
	return t, nil
}

func (r *Registry) resolveBase(base string, depth int) (*Type, error) {
	base = stripTag(base)
	if canon, ok := builtinSynonyms[base]; ok {
		base = canon
	}

	r.mu.RLock()
	t, isType := r.types[base]
	target, isAlias := r.aliases[base]
	r.mu.RUnlock()

	switch {
	case isType:
		return t, nil
	case isAlias:
		at, err := r.resolve(normalizeExpr(target), depth+1)
		if err != nil {
			return nil, fmt.Errorf("alias %s: %w", base, err)
		}
		return at, nil
	}

	if kind, elem, ok := parseSmartPointer(base); ok {
		et, err := r.resolve(normalizeExpr(elem), depth+1)
		if err != nil {
			return nil, err
		}
		return NewSmartPointer(kind, et, r.arch), nil
	}
	return nil, &NotFoundError{Name: base}
}

var declaratorSpacer = strings.NewReplacer("*", " * ", "&", " & ")

// normalizeExpr collapses whitespace and drops cv-qualifiers, including
// ones written against a declarator ("char const*", "int *const").
func normalizeExpr(expr string) string {
	fields := strings.Fields(declaratorSpacer.Replace(expr))
	out := fields[:0]
	for _, f := range fields {
		if f == "const" || f == "volatile" {
			continue
		}
		out = append(out, f)
	}
	s := strings.Join(out, " ")
	s = strings.ReplaceAll(s, " *", "*")
	s = strings.ReplaceAll(s, "* ", "*")
	s = strings.ReplaceAll(s, " &", "&")
	s = strings.ReplaceAll(s, "& ", "&")
	s = strings.ReplaceAll(s, " [", "[")
	s = strings.ReplaceAll(s, " )", ")")
	return s
}

// splitDeclarator splits "Node**[2][3]" into "Node", "**" and [2 3].
func splitDeclarator(s string) (string, []byte, []int, error) {
	depth := 0
	end := len(s)
	for i, c := range s {
		switch c {
		case '<':
			depth++
		case '>':
			depth--
		case '*', '&', '[':
			if depth == 0 && i < end {
				end = i
			}
		}
	}
	base := strings.TrimSpace(s[:end])
	rest := s[end:]

	var ops []byte
	var dims []int
	for len(rest) > 0 {
		switch rest[0] {
		case '*', '&':
			if len(dims) > 0 {
				return "", nil, nil, fmt.Errorf("%w: unsupported declarator %q", ErrInvalidType, s)
			}
			ops = append(ops, rest[0])
			rest = rest[1:]
		case '[':
			closeIdx := strings.IndexByte(rest, ']')
			if closeIdx < 0 {
				return "", nil, nil, fmt.Errorf("%w: unterminated array in %q", ErrInvalidType, s)
			}
			n, err := strconv.Atoi(strings.TrimSpace(rest[1:closeIdx]))
			if err != nil || n < 0 {
				return "", nil, nil, fmt.Errorf("%w: bad array length in %q", ErrInvalidType, s)
			}
			dims = append(dims, n)
			rest = rest[closeIdx+1:]
		case ' ':
			rest = rest[1:]
		default:
			return "", nil, nil, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidType, rest[0], s)
		}
	}
	return base, ops, dims, nil
}

// parseSmartPointer recognizes "std::unique_ptr<T>", "std::shared_ptr<T>"
// and "std::weak_ptr<T>", ignoring a deleter argument.
func parseSmartPointer(name string) (SmartKind, string, bool) {
	prefixes := []struct {
		prefix string
		kind   SmartKind
	}{
		{"std::unique_ptr<", SmartUnique},
		{"std::shared_ptr<", SmartShared},
		{"std::weak_ptr<", SmartWeak},
	}
	for _, p := range prefixes {
		if !strings.HasPrefix(name, p.prefix) || !strings.HasSuffix(name, ">") {
			continue
		}
		inner := name[len(p.prefix) : len(name)-1]
		depth := 0
	scan:
		for i := 0; i < len(inner); i++ {
			switch inner[i] {
			case '<':
				depth++
			case '>':
				depth--
			case ',':
				if depth == 0 {
					inner = inner[:i]
					break scan
				}
			}
		}
		return p.kind, strings.TrimSpace(inner), true
	}
	return 0, "", false
}
