package compiler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxLoopsFromLabel parses a group's loop-count label: a bare "N" (repeat,
// spec.md §4.5 Repeat groups / for-each groups) or a "k/N" form where only
// the denominator matters at compile time (the numerator is a runtime
// progress display). Returns ok=false when the label carries no number, in
// which case callers default to a single iteration.
func maxLoopsFromLabel(label string) (int, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, false
	}
	if idx := strings.IndexByte(label, '/'); idx >= 0 {
		n, err := strconv.Atoi(strings.TrimSpace(label[idx+1:]))
		if err != nil {
			return 0, false
		}
		return n, n > 0
	}
	n, err := strconv.Atoi(label)
	if err != nil {
		return 0, false
	}
	return n, n > 0
}

// expandForEach implements step F: every for-each-signified group is
// replaced by MaxLoops deep copies of itself and its members, with incoming
// list edges rewired to item edges and outgoing edges stamped with a
// version index (spec.md §4.2 step F, §4.5 "for-each groups"). Groups are
// processed deepest-first so that a for-each group nested inside another
// for-each group is fully expanded before its enclosing group is copied.
func expandForEach(vg *VerifiedGraph, enclosing map[string][]string) {
	var groups []*Group
	for _, id := range vg.Order {
		if g, ok := vg.Groups[id]; ok && g.Subtype == GroupForEachSignified {
			groups = append(groups, g)
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return len(enclosing[groups[i].ID]) > len(enclosing[groups[j].ID])
	})
	for _, g := range groups {
		expandOneForEach(vg, g)
	}
}

func expandOneForEach(vg *VerifiedGraph, g *Group) {
	n := g.MaxLoops
	if n <= 0 {
		n = 1
	}

	memberSet := make(map[string]bool, len(g.Members))
	for _, m := range g.Members {
		memberSet[m] = true
	}

	var internal, incoming, outgoing []*Edge
	for _, id := range vg.Order {
		e, ok := vg.Edges[id]
		if !ok {
			continue
		}
		srcIn := memberSet[e.Source] || e.Source == g.ID
		tgtIn := memberSet[e.Target] || e.Target == g.ID
		switch {
		case srcIn && tgtIn:
			internal = append(internal, e)
		case !srcIn && tgtIn:
			incoming = append(incoming, e)
		case srcIn && !tgtIn:
			outgoing = append(outgoing, e)
		}
	}

	var newIDs []string
	for i := 1; i <= n; i++ {
		suffix := fmt.Sprintf("-%d", i)
		idMap := map[string]string{g.ID: g.ID + suffix}
		for _, m := range g.Members {
			idMap[m] = m + suffix
		}

		ng := &Group{
			ID:             g.ID + suffix,
			Subtype:        GroupBasic,
			FromForEach:    true,
			ForEachIndex:   i,
			OriginalObject: g.ID,
			Rect:           g.Rect,
		}
		vg.Groups[ng.ID] = ng
		vg.Order = append(vg.Order, ng.ID)
		newIDs = append(newIDs, ng.ID)

		for _, m := range g.Members {
			nid := copyVertexForIteration(vg, m, idMap, suffix)
			if nid != "" {
				ng.Members = append(ng.Members, nid)
				vg.Order = append(vg.Order, nid)
			}
		}

		for _, e := range internal {
			ne := cloneEdge(e, idMap)
			ne.ID = e.ID + suffix
			vg.Edges[ne.ID] = ne
			vg.Order = append(vg.Order, ne.ID)
		}

		for _, e := range incoming {
			ne := cloneEdge(e, idMap)
			ne.ID = e.ID + suffix
			ne.Target = idMap[e.Target]
			if ne.Subtype == EdgeList {
				ne.Subtype = EdgeItem
			}
			vg.Edges[ne.ID] = ne
			vg.Order = append(vg.Order, ne.ID)
		}

		for _, e := range outgoing {
			ne := cloneEdge(e, idMap)
			ne.ID = e.ID + suffix
			ne.Source = idMap[e.Source]
			ne.Versions = append([]int{i}, e.Versions...)
			vg.Edges[ne.ID] = ne
			vg.Order = append(vg.Order, ne.ID)
		}
	}

	// Remove the original group, its members, and their original edges —
	// only the N suffixed copies remain.
	delete(vg.Groups, g.ID)
	for _, m := range g.Members {
		delete(vg.Nodes, m)
		delete(vg.Groups, m)
	}
	removed := map[string]bool{g.ID: true}
	for _, m := range g.Members {
		removed[m] = true
	}
	for _, e := range internal {
		delete(vg.Edges, e.ID)
		removed[e.ID] = true
	}
	for _, e := range incoming {
		delete(vg.Edges, e.ID)
		removed[e.ID] = true
	}
	for _, e := range outgoing {
		delete(vg.Edges, e.ID)
		removed[e.ID] = true
	}
	vg.Order = filterOutIDs(vg.Order, removed)
}

// copyVertexForIteration deep-copies a node or nested group member for one
// for-each iteration, remapping its own id, its Groups/Members references
// and any edges wholly contained within it are handled by the caller
// separately. Returns the new id, or "" if m no longer exists (already
// consumed by a deeper for-each expansion).
func copyVertexForIteration(vg *VerifiedGraph, m string, idMap map[string]string, suffix string) string {
	if n, ok := vg.Nodes[m]; ok {
		nn := &Node{
			ID:      idMap[m],
			Subtype: n.Subtype,
			Text:    n.Text,
			Name:    n.Name,
			Rect:    n.Rect,
			Groups:  remapIDs(n.Groups, idMap),
		}
		vg.Nodes[nn.ID] = nn
		return nn.ID
	}
	if g, ok := vg.Groups[m]; ok {
		ng := &Group{
			ID:             idMap[m],
			Subtype:        g.Subtype,
			MaxLoops:       g.MaxLoops,
			FromForEach:    g.FromForEach,
			ForEachIndex:   g.ForEachIndex,
			OriginalObject: g.OriginalObject,
			Rect:           g.Rect,
			Members:        remapIDs(g.Members, idMap),
		}
		vg.Groups[ng.ID] = ng
		return ng.ID
	}
	return ""
}

func cloneEdge(e *Edge, idMap map[string]string) *Edge {
	ne := *e
	if s, ok := idMap[e.Source]; ok {
		ne.Source = s
	}
	if t, ok := idMap[e.Target]; ok {
		ne.Target = t
	}
	ne.CrossingIn = remapIDs(e.CrossingIn, idMap)
	ne.CrossingOut = remapIDs(e.CrossingOut, idMap)
	ne.Versions = append([]int(nil), e.Versions...)
	return &ne
}

func remapIDs(ids []string, idMap map[string]string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		if m, ok := idMap[id]; ok {
			out[i] = m
		} else {
			out[i] = id
		}
	}
	return out
}

func filterOutIDs(order []string, removed map[string]bool) []string {
	out := order[:0:0]
	for _, id := range order {
		if !removed[id] {
			out = append(out, id)
		}
	}
	return out
}
