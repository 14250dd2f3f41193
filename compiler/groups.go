package compiler

import (
	"sort"

	"github.com/DeabLabs/cannoli-sub001/canvas"
)

// rectHolder is anything the containment pass needs a rectangle for: nodes
// and groups both participate as vertices that can be enclosed by other
// groups (spec.md §4.2 step D; a nested group is itself a "vertex" for the
// purpose of computing its enclosing groups, and becomes a member of its
// parent group).
type rectHolder struct {
	id   string
	area float64
	rect rectBounds
}

type rectBounds struct{ x0, y0, x1, y1 float64 }

func (b rectBounds) encloses(o rectBounds) bool {
	return b.x0 < o.x0 && b.y0 < o.y0 && b.x1 > o.x1 && b.y1 > o.y1
}

func (b rectBounds) overlaps(o rectBounds) bool {
	return b.x0 < o.x1 && b.x1 > o.x0 && b.y0 < o.y1 && b.y1 > o.y0
}

// computeGroupMembership implements step D: for every node and every group,
// compute its sorted-innermost-first list of strictly-enclosing groups, and
// populate each group's Members as the reverse mapping. It also runs the
// "rectangular overlap without enclosure" validation (spec.md §4.2
// Validation).
func computeGroupMembership(vg *VerifiedGraph) map[string][]string {
	groupBounds := make(map[string]rectBounds, len(vg.Groups))
	groupAreas := make(map[string]float64, len(vg.Groups))
	for id, g := range vg.Groups {
		groupBounds[id] = toBounds(g.Rect)
		groupAreas[id] = g.Rect.Area()
	}

	enclosingGroups := make(map[string][]string)

	assign := func(id string, bounds rectBounds, isGroup bool) {
		type candidate struct {
			id   string
			area float64
		}
		var candidates []candidate
		for gid, gBounds := range groupBounds {
			if isGroup && gid == id {
				continue
			}
			if gBounds.encloses(bounds) {
				candidates = append(candidates, candidate{gid, groupAreas[gid]})
			} else if gBounds.overlaps(bounds) && gid != id {
				vg.addError(ErrOverlapWithoutEnclosure, id, "overlaps group "+gid+" without enclosure")
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].area < candidates[j].area })
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.id
		}
		enclosingGroups[id] = ids
	}

	for id, n := range vg.Nodes {
		assign(id, toBounds(n.Rect), false)
	}
	for id, g := range vg.Groups {
		assign(id, toBounds(g.Rect), true)
	}

	for id, n := range vg.Nodes {
		n.Groups = enclosingGroups[id]
	}
	for _, g := range vg.Groups {
		g.Members = nil
	}
	for id, groups := range enclosingGroups {
		if len(groups) == 0 {
			continue
		}
		immediate := groups[0]
		if pg, ok := vg.Groups[immediate]; ok {
			pg.Members = append(pg.Members, id)
		}
	}
	// Every vertex (node or group) is also a member of every ancestor group
	// it is nested in, so a repeat/basic group's completion test (spec.md §3
	// invariant 6: "A group additionally depends on every one of its
	// members") sees every nested vertex directly, without walking levels.
	for id, groups := range enclosingGroups {
		for _, gid := range groups[minInt(1, len(groups)):] {
			if pg, ok := vg.Groups[gid]; ok {
				if !containsStr(pg.Members, id) {
					pg.Members = append(pg.Members, id)
				}
			}
		}
	}

	return enclosingGroups
}

func toBounds(r canvas.Rect) rectBounds {
	return rectBounds{x0: r.X, y0: r.Y, x1: r.X + r.W, y1: r.Y + r.H}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// computeCrossingGroups implements step E for one edge given the immediate-
// first enclosing-group lists of its source and target vertices.
func computeCrossingGroups(sourceGroups, targetGroups []string, sourceIsGroupContainingTarget, targetIsGroupContainingSource bool) (crossingOut, crossingIn []string) {
	sharedIdx := -1
	sharedIdxInTarget := -1
	for i, s := range sourceGroups {
		for j, t := range targetGroups {
			if s == t {
				sharedIdx = i
				sharedIdxInTarget = j
				goto found
			}
		}
	}
found:
	if sharedIdx == -1 {
		crossingOut = append([]string{}, sourceGroups...)
		crossingIn = reverseStrs(targetGroups)
	} else {
		crossingOut = append([]string{}, sourceGroups[:sharedIdx]...)
		crossingIn = reverseStrs(targetGroups[:sharedIdxInTarget])
	}
	if sourceIsGroupContainingTarget && len(crossingIn) > 0 {
		crossingIn = crossingIn[1:]
	}
	if targetIsGroupContainingSource && len(crossingIn) > 0 {
		crossingIn = crossingIn[1:]
	}
	return crossingOut, crossingIn
}

func reverseStrs(in []string) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
