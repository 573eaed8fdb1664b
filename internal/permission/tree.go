package permission

import (
	"cmp"
	"slices"
)

// capabilityArena indexes a filtered catalog slice by id and by parent so
// trees can be built without repeated scans. Only capabilities inside the
// slice are reachable; a child whose parent was filtered out is not rendered.
type capabilityArena struct {
	nodes    map[int64]*Capability
	children map[int64][]int64
	roots    []int64
}

func newCapabilityArena(caps []Capability) *capabilityArena {
	a := &capabilityArena{
		nodes:    make(map[int64]*Capability, len(caps)),
		children: make(map[int64][]int64),
	}
	for i := range caps {
		c := &caps[i]
		a.nodes[c.ID] = c
		if c.ParentID == nil {
			a.roots = append(a.roots, c.ID)
			continue
		}
		a.children[*c.ParentID] = append(a.children[*c.ParentID], c.ID)
	}

	slices.Sort(a.roots)
	for parent := range a.children {
		slices.Sort(a.children[parent])
	}
	return a
}

// nodeOptions controls how capabilities are rendered.
type nodeOptions struct {
	moduleNames map[int64]string
	granted     map[int64]bool
}

// forest renders the trees rooted at ids. The visited set guarantees each
// capability is rendered at most once, so corrupt parent links cannot loop.
func (a *capabilityArena) forest(ids []int64, opts nodeOptions) []*CapabilityNode {
	visited := make(map[int64]bool, len(a.nodes))
	out := make([]*CapabilityNode, 0, len(ids))
	for _, id := range ids {
		if n := a.render(id, opts, visited); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (a *capabilityArena) render(id int64, opts nodeOptions, visited map[int64]bool) *CapabilityNode {
	c, ok := a.nodes[id]
	if !ok || visited[id] {
		return nil
	}
	visited[id] = true

	node := &CapabilityNode{
		ID:            c.ID,
		ModuleID:      c.ModuleID,
		Name:          c.Name,
		ParentID:      c.ParentID,
		RefCode:       c.RefCode,
		Description:   c.Description,
		IsVisible:     c.IsVisible,
		HasPermission: opts.granted[c.ID],
		Children:      []*CapabilityNode{},
	}
	if opts.moduleNames != nil {
		node.ModuleName = opts.moduleNames[c.ModuleID]
		if node.ModuleName == "" {
			node.ModuleName = "Unknown"
		}
	}

	for _, child := range a.children[id] {
		if n := a.render(child, opts, visited); n != nil {
			node.Children = append(node.Children, n)
		}
	}
	return node
}

// rootsOfModule returns the root capability ids owned by moduleID.
func (a *capabilityArena) rootsOfModule(moduleID int64) []int64 {
	var ids []int64
	for _, id := range a.roots {
		if a.nodes[id].ModuleID == moduleID {
			ids = append(ids, id)
		}
	}
	return ids
}

// buildModuleForest arranges modules by parent. A module whose parent is
// not in the set becomes a root. Siblings are ordered by sort order, then id.
func buildModuleForest(modules []Module) []*ModuleNode {
	byID := make(map[int64]*Module, len(modules))
	for i := range modules {
		byID[modules[i].ID] = &modules[i]
	}

	children := make(map[int64][]*Module)
	var roots []*Module
	for i := range modules {
		m := &modules[i]
		if m.ParentID != nil && *m.ParentID != m.ID {
			if _, ok := byID[*m.ParentID]; ok {
				children[*m.ParentID] = append(children[*m.ParentID], m)
				continue
			}
		}
		roots = append(roots, m)
	}

	bySortOrder := func(x, y *Module) int {
		if c := cmp.Compare(x.SortOrder, y.SortOrder); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	}

	visited := make(map[int64]bool, len(modules))
	var render func(m *Module) *ModuleNode
	render = func(m *Module) *ModuleNode {
		if visited[m.ID] {
			return nil
		}
		visited[m.ID] = true

		node := &ModuleNode{Module: *m, Children: []*ModuleNode{}}
		kids := children[m.ID]
		slices.SortFunc(kids, bySortOrder)
		for _, k := range kids {
			if n := render(k); n != nil {
				node.Children = append(node.Children, n)
			}
		}
		return node
	}

	slices.SortFunc(roots, bySortOrder)
	out := make([]*ModuleNode, 0, len(roots))
	for _, m := range roots {
		if n := render(m); n != nil {
			out = append(out, n)
		}
	}
	return out
}
