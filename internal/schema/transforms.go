package schema

import (
	"github.com/neogan74/savekit/internal/document"
)

// FieldRename moves the value under From to To.
type FieldRename struct {
	From string
	To   string
}

// RenameFields applies renames to the object at container. An empty
// container means the root. When container holds an array, every object
// element is renamed. Missing source fields are left alone.
func RenameFields(doc *document.Node, container string, renames []FieldRename) {
	target := doc
	if container != "" {
		var ok bool
		if target, ok = doc.Get(container); !ok {
			return
		}
	}

	if target.IsArray() {
		for i := 0; i < target.Len(); i++ {
			item, _ := target.At(i)
			renameObject(item, renames)
		}
		return
	}
	renameObject(target, renames)
}

func renameObject(obj *document.Node, renames []FieldRename) {
	if !obj.IsObject() {
		return
	}
	for _, rn := range renames {
		v, ok := obj.Get(rn.From)
		if !ok || rn.From == rn.To {
			continue
		}
		obj.Remove(rn.From)
		obj.Set(rn.To, v)
	}
}

// RenameTransform returns a transform applying RenameFields.
func RenameTransform(container string, renames ...FieldRename) TransformFunc {
	return func(doc *document.Node) (*document.Node, error) {
		RenameFields(doc, container, renames)
		return doc, nil
	}
}
