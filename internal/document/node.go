// Package document implements the save document: a small tagged value
// tree of objects, arrays and string leaves, plus its text form.
//
// Only three kinds exist. Numbers and booleans are carried as string
// leaves and callers parse or format them themselves. Object keys keep
// their insertion order so that Serialize is stable across round trips.
package document

// Kind identifies the variant held by a Node.
type Kind uint8

const (
	KindString Kind = iota
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Node is one value in a document tree. A Node is owned by whichever
// pipeline stage holds it; use Clone before handing a tree to another owner.
type Node struct {
	kind   Kind
	str    string
	items  []*Node
	keys   []string
	fields map[string]*Node
}

// String returns a string leaf.
func String(s string) *Node {
	return &Node{kind: KindString, str: s}
}

// NewArray returns an array holding items in order.
func NewArray(items ...*Node) *Node {
	n := &Node{kind: KindArray, items: make([]*Node, 0, len(items))}
	for _, item := range items {
		if item != nil {
			n.items = append(n.items, item)
		}
	}
	return n
}

// NewObject returns an empty object.
func NewObject() *Node {
	return &Node{kind: KindObject, fields: make(map[string]*Node)}
}

func (n *Node) Kind() Kind { return n.kind }

func (n *Node) IsString() bool { return n != nil && n.kind == KindString }
func (n *Node) IsArray() bool  { return n != nil && n.kind == KindArray }
func (n *Node) IsObject() bool { return n != nil && n.kind == KindObject }

// Str returns the leaf value, or "" for containers.
func (n *Node) Str() string {
	if n == nil || n.kind != KindString {
		return ""
	}
	return n.str
}

// Get returns the member stored under key.
func (n *Node) Get(key string) (*Node, bool) {
	if !n.IsObject() {
		return nil, false
	}
	v, ok := n.fields[key]
	return v, ok
}

// GetString returns the leaf stored under key. ok is false when the key
// is missing or holds a container.
func (n *Node) GetString(key string) (string, bool) {
	v, ok := n.Get(key)
	if !ok || !v.IsString() {
		return "", false
	}
	return v.str, true
}

// Set stores v under key. An existing key keeps its position.
// It reports false when n is not an object or v is nil.
func (n *Node) Set(key string, v *Node) bool {
	if !n.IsObject() || v == nil {
		return false
	}
	if _, exists := n.fields[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = v
	return true
}

// SetString is shorthand for Set(key, String(value)).
func (n *Node) SetString(key, value string) bool {
	return n.Set(key, String(value))
}

// Remove deletes key and reports whether it was present.
func (n *Node) Remove(key string) bool {
	if !n.IsObject() {
		return false
	}
	if _, ok := n.fields[key]; !ok {
		return false
	}
	delete(n.fields, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
	return true
}

func (n *Node) ContainsKey(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Keys returns the object's keys in insertion order.
func (n *Node) Keys() []string {
	if !n.IsObject() {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// At returns the array element at index.
func (n *Node) At(index int) (*Node, bool) {
	if !n.IsArray() || index < 0 || index >= len(n.items) {
		return nil, false
	}
	return n.items[index], true
}

// Len returns the element count of an array, the key count of an
// object and 0 for leaves.
func (n *Node) Len() int {
	switch {
	case n.IsArray():
		return len(n.items)
	case n.IsObject():
		return len(n.keys)
	default:
		return 0
	}
}

// Append adds v to the end of an array.
func (n *Node) Append(v *Node) bool {
	if !n.IsArray() || v == nil {
		return false
	}
	n.items = append(n.items, v)
	return true
}

// Clone returns a deep copy that shares nothing with n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	switch n.kind {
	case KindArray:
		c := &Node{kind: KindArray, items: make([]*Node, len(n.items))}
		for i, item := range n.items {
			c.items[i] = item.Clone()
		}
		return c
	case KindObject:
		c := &Node{kind: KindObject, keys: make([]string, len(n.keys)), fields: make(map[string]*Node, len(n.fields))}
		copy(c.keys, n.keys)
		for k, v := range n.fields {
			c.fields[k] = v.Clone()
		}
		return c
	default:
		return &Node{kind: KindString, str: n.str}
	}
}

// Equal reports structural equality. Object key order is ignored.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind != other.kind {
		return false
	}
	switch n.kind {
	case KindArray:
		if len(n.items) != len(other.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(n.fields) != len(other.fields) {
			return false
		}
		for k, v := range n.fields {
			ov, ok := other.fields[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return n.str == other.str
	}
}
