package document

// VersionKeys are the top-level keys that may carry a document's schema
// version, in lookup order.
var VersionKeys = []string{"version", "dataVersion", "saveVersion"}

// Version returns the first version key present on the root object and its value.
func Version(root *Node) (key, value string, ok bool) {
	for _, k := range VersionKeys {
		if v, found := root.GetString(k); found {
			return k, v, true
		}
	}
	return "", "", false
}

// HasVersionKey reports whether any version key exists, whatever its kind.
func HasVersionKey(root *Node) bool {
	for _, k := range VersionKeys {
		if root.ContainsKey(k) {
			return true
		}
	}
	return false
}

// SetVersion stamps version onto the key the document already uses,
// falling back to "version".
func SetVersion(root *Node, version string) bool {
	for _, k := range VersionKeys {
		if root.ContainsKey(k) {
			return root.SetString(k, version)
		}
	}
	return root.SetString(VersionKeys[0], version)
}
