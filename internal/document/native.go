package document

// ToNative converts n into map[string]any, []any and string values.
func ToNative(n *Node) any {
	if n == nil {
		return nil
	}
	switch n.kind {
	case KindObject:
		m := make(map[string]any, len(n.fields))
		for k, v := range n.fields {
			m[k] = ToNative(v)
		}
		return m
	case KindArray:
		out := make([]any, len(n.items))
		for i, item := range n.items {
			out[i] = ToNative(item)
		}
		return out
	default:
		return n.str
	}
}
