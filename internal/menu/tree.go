package menu

import "github.com/odyssey-erp/odyssey-rbac/internal/rbac"

// Visible reports whether an entry is shown to the holder of set.
func Visible(e Entry, set rbac.AuthoritySet) bool {
	return rbac.Authorize(set, rbac.AnyOf(e.RequiredPermission))
}

// BuildVisibleTree filters entries by the caller's authorities and links the
// survivors into a forest.
//
// Assembly runs in two passes: index every visible entry by id, then attach
// each to its parent in input order. An entry whose parent is hidden, absent
// or part of a cycle never becomes reachable from a root and is dropped; it
// is not promoted to the top level. The first entry wins on duplicate ids.
func BuildVisibleTree(entries []Entry, set rbac.AuthoritySet) []*Node {
	index := make(map[int64]*Node, len(entries))
	visible := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !Visible(e, set) {
			continue
		}
		if _, dup := index[e.ID]; dup {
			continue
		}
		index[e.ID] = &Node{
			ID:       e.ID,
			Label:    e.Label,
			Path:     e.Path,
			Icon:     e.Icon,
			Children: make([]*Node, 0),
		}
		visible = append(visible, e)
	}

	roots := make([]*Node, 0)
	for _, e := range visible {
		node := index[e.ID]
		if e.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := index[*e.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}
	return roots
}
