// Package surface assembles the namespaced operation table the adapter
// exposes, and the capability manifest advertised to the host on connect.
package surface

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ExtNamespace holds host-supplied custom interfaces.
const ExtNamespace = "ext"

// UnknownInvite is advertised when no invite was configured.
const UnknownInvite = "???"

var (
	ErrUnknownNamespace = errors.New("unknown namespace")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrDuplicate        = errors.New("duplicate declaration")
)

// Target is a backing object reached through a single command entry point.
type Target interface {
	Cmd(id string, args interface{}) interface{}
}

// TargetFunc adapts a function to Target.
type TargetFunc func(id string, args interface{}) interface{}

// Cmd calls f(id, args).
func (f TargetFunc) Cmd(id string, args interface{}) interface{} {
	return f(id, args)
}

// Handler implements one operation.
type Handler func(args interface{}) interface{}

// Operation is a named handler.
type Operation struct {
	Name    string
	Handler Handler
}

// Namespace declares the operations of one namespace.
type Namespace struct {
	ID     string
	Target Target
	// Local operations are called directly and advertised.
	Local []Operation
	// Forward operations are forwarded to Target and advertised.
	Forward []string
	// Internal operations are forwarded to Target but never advertised.
	Internal []string
}

type table struct {
	target     Target
	ops        map[string]Handler
	advertised []string
}

// Surface is the immutable operation table built from declarations.
type Surface struct {
	order  []string
	tables map[string]*table
	ext    *table
}

// Build assembles the surface. Namespace ids and operation names must be
// unique within their scope.
func Build(namespaces []Namespace, ext []Operation) (*Surface, error) {
	s := &Surface{
		tables: make(map[string]*table, len(namespaces)),
		ext:    &table{ops: make(map[string]Handler, len(ext))},
	}

	for _, ns := range namespaces {
		if ns.ID == ExtNamespace || ns.ID == "invite" {
			return nil, fmt.Errorf("namespace %q is reserved: %w", ns.ID, ErrDuplicate)
		}
		if _, exists := s.tables[ns.ID]; exists {
			return nil, fmt.Errorf("namespace %q: %w", ns.ID, ErrDuplicate)
		}

		t := &table{target: ns.Target, ops: make(map[string]Handler)}
		add := func(name string, h Handler, advertise bool) error {
			if _, exists := t.ops[name]; exists {
				return fmt.Errorf("%s.%s: %w", ns.ID, name, ErrDuplicate)
			}
			t.ops[name] = h
			if advertise {
				t.advertised = append(t.advertised, name)
			}
			return nil
		}

		for _, op := range ns.Local {
			if err := add(op.Name, op.Handler, true); err != nil {
				return nil, err
			}
		}
		for _, name := range ns.Forward {
			if err := add(name, forward(ns.Target, name), true); err != nil {
				return nil, err
			}
		}
		for _, name := range ns.Internal {
			if err := add(name, forward(ns.Target, name), false); err != nil {
				return nil, err
			}
		}

		s.tables[ns.ID] = t
		s.order = append(s.order, ns.ID)
	}

	for _, op := range ext {
		if _, exists := s.ext.ops[op.Name]; exists {
			return nil, fmt.Errorf("%s.%s: %w", ExtNamespace, op.Name, ErrDuplicate)
		}
		s.ext.ops[op.Name] = op.Handler
		s.ext.advertised = append(s.ext.advertised, op.Name)
	}
	sort.Strings(s.ext.advertised)

	return s, nil
}

func forward(target Target, id string) Handler {
	return func(args interface{}) interface{} {
		if target == nil {
			return true
		}
		return orTrue(target.Cmd(id, args))
	}
}

func orTrue(v interface{}) interface{} {
	if v == nil {
		return true
	}
	return v
}

// Namespaces returns the declared namespace ids in declaration order.
func (s *Surface) Namespaces() []string {
	return append([]string(nil), s.order...)
}

// Operations returns the advertised operation names of ns.
func (s *Surface) Operations(ns string) []string {
	t := s.lookup(ns)
	if t == nil {
		return nil
	}
	return append([]string(nil), t.advertised...)
}

func (s *Surface) lookup(ns string) *table {
	if ns == ExtNamespace {
		return s.ext
	}
	return s.tables[ns]
}

// Call invokes ns.op with args, including operations that are not
// advertised.
func (s *Surface) Call(ns, op string, args interface{}) (interface{}, error) {
	t := s.lookup(ns)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}
	h, ok := t.ops[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, ns, op)
	}
	return h(args), nil
}

// Has reports whether ns.op exists.
func (s *Surface) Has(ns, op string) bool {
	t := s.lookup(ns)
	if t == nil {
		return false
	}
	_, ok := t.ops[op]
	return ok
}

// Dispatch forwards a host request {id, args} for namespace ns straight
// to its target, returning the result or true.
func (s *Surface) Dispatch(ns, id string, args interface{}) (interface{}, error) {
	t, ok := s.tables[ns]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, ns)
	}
	if t.target == nil {
		return true, nil
	}
	return orTrue(t.target.Cmd(id, args)), nil
}

// Manifest builds the capability manifest for invite.
func (s *Surface) Manifest(invite string) Manifest {
	if invite == "" {
		invite = UnknownInvite
	}

	m := Manifest{Invite: invite}
	for _, ns := range s.order {
		m.Namespaces = append(m.Namespaces, Entry{ID: ns, Operations: s.Operations(ns)})
	}
	if len(s.ext.advertised) > 0 {
		m.Namespaces = append(m.Namespaces, Entry{ID: ExtNamespace, Operations: s.Operations(ExtNamespace)})
	}
	return m
}

// Entry lists the advertised operations of one namespace.
type Entry struct {
	ID         string
	Operations []string
}

// Manifest is sent to the host once the channel is live. It encodes as a
// flat object: {"invite": ..., "<namespace>": [...], ...}.
type Manifest struct {
	Invite     string
	Namespaces []Entry
}

// Lookup returns the advertised operations for ns.
func (m Manifest) Lookup(ns string) ([]string, bool) {
	for _, e := range m.Namespaces {
		if e.ID == ns {
			return e.Operations, true
		}
	}
	return nil, false
}

// MarshalJSON writes namespaces in declaration order.
func (m Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"invite":`)
	invite, err := json.Marshal(m.Invite)
	if err != nil {
		return nil, err
	}
	buf.Write(invite)

	for _, e := range m.Namespaces {
		key, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		ops := e.Operations
		if ops == nil {
			ops = []string{}
		}
		val, err := json.Marshal(ops)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat manifest. Namespaces come back sorted by id.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Manifest{}
	if v, ok := raw["invite"]; ok {
		if err := json.Unmarshal(v, &m.Invite); err != nil {
			return fmt.Errorf("manifest invite: %w", err)
		}
		delete(raw, "invite")
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var ops []string
		if err := json.Unmarshal(raw[k], &ops); err != nil {
			return fmt.Errorf("manifest %s: %w", k, err)
		}
		m.Namespaces = append(m.Namespaces, Entry{ID: k, Operations: ops})
	}
	return nil
}
