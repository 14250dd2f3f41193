package compiler

// runValidations performs every non-fatal check spec.md §4.2 "Validation"
// lists beyond overlap-without-enclosure (already caught during step D).
// Each failure is attached to the offending object; none of them prevent
// Compile from returning a usable graph for the rest of the canvas.
func runValidations(vg *VerifiedGraph) {
	validateDeadlockCycles(vg)
	validateChooseNodes(vg)
	validateRepeatGroups(vg)
	validateListEdges(vg)
	validateNamedOutputsInForEach(vg)
	validateReservedNames(vg)
}

// validateDeadlockCycles flags a grouped node from which a path of
// outgoing edges leads back to that same node, which can never become
// ready because it would wait on itself. A path that leaves the group and
// re-enters it at a different member is not flagged.
func validateDeadlockCycles(vg *VerifiedGraph) {
	memberOf := make(map[string]map[string]bool, len(vg.Groups))
	for gid, g := range vg.Groups {
		for _, m := range g.Members {
			if memberOf[m] == nil {
				memberOf[m] = make(map[string]bool)
			}
			memberOf[m][gid] = true
		}
	}

	for id, g := range memberOf {
		for _, e := range vg.OutgoingEdges(id) {
			if !g[e.Target] && reachesBack(vg, e.Target, id, g, make(map[string]bool)) {
				vg.addError(ErrDeadlockCycle, id, "dependency path leaves and re-enters group via "+e.Target)
			}
		}
	}
}

// reachesBack reports whether any path of outgoing edges from start reaches
// target. The group set g is not consulted: the search follows edges into
// and out of any group.
func reachesBack(vg *VerifiedGraph, start, target string, g map[string]bool, seen map[string]bool) bool {
	if start == target {
		return true
	}
	if seen[start] {
		return false
	}
	seen[start] = true
	for _, e := range vg.OutgoingEdges(start) {
		if reachesBack(vg, e.Target, target, g, seen) {
			return true
		}
	}
	return false
}

// validateChooseNodes requires every call:choose node to have at least one
// outgoing choice-subtype edge (spec.md §4.5 Choose call node).
func validateChooseNodes(vg *VerifiedGraph) {
	for id, n := range vg.Nodes {
		if n.Subtype != NodeCallChoose {
			continue
		}
		ok := false
		for _, e := range vg.OutgoingEdges(id) {
			if e.Subtype == EdgeChoice {
				ok = true
				break
			}
		}
		if !ok {
			vg.addError(ErrChooseNoOutgoingChoice, id, "choose node has no outgoing choice edge")
		}
	}
}

// validateRepeatGroups requires repeat groups to carry no outgoing list
// edges from their members, since repeat (unlike for-each) doesn't fan a
// list out across iterations (spec.md §4.5 Repeat groups).
func validateRepeatGroups(vg *VerifiedGraph) {
	for gid, g := range vg.Groups {
		if g.Subtype != GroupRepeat {
			continue
		}
		members := make(map[string]bool, len(g.Members))
		for _, m := range g.Members {
			members[m] = true
		}
		for _, id := range g.Members {
			for _, e := range vg.OutgoingEdges(id) {
				if !members[e.Target] && e.Subtype == EdgeList {
					vg.addError(ErrRepeatOutgoingOrList, gid, "repeat group member "+id+" has outgoing list edge")
				}
			}
		}
	}
}

// validateListEdges requires a list-subtype edge's target to be a group
// (only a for-each-signified group consumes a list edge, spec.md §4.2 step
// F / §4.5 for-each groups).
func validateListEdges(vg *VerifiedGraph) {
	for id, e := range vg.Edges {
		if e.Subtype != EdgeList {
			continue
		}
		if _, ok := vg.Groups[e.Target]; !ok {
			vg.addError(ErrListEdgeOnNonGroup, id, "list edge target "+e.Target+" is not a group")
		}
	}
}

// validateNamedOutputsInForEach rejects a named content:output node living
// inside a for-each-signified group or one of the copies step F made of
// it, since duplication would produce N nodes racing to claim the same
// name (spec.md §4.5 "named outputs are rejected inside for-each groups").
func validateNamedOutputsInForEach(vg *VerifiedGraph) {
	forEachMembers := make(map[string]bool)
	for _, g := range vg.Groups {
		if g.Subtype != GroupForEachSignified && !g.FromForEach {
			continue
		}
		for _, m := range g.Members {
			forEachMembers[m] = true
		}
	}
	for id, n := range vg.Nodes {
		if n.Subtype == NodeContentOutput && n.Name != "" && forEachMembers[id] {
			vg.addError(ErrNamedOutputInForEach, id, "named output \""+n.Name+"\" inside for-each group")
		}
	}
}

// validateReservedNames rejects any named node/edge/floating variable that
// collides with a built-in special variable (spec.md §4.5).
func validateReservedNames(vg *VerifiedGraph) {
	for id, n := range vg.Nodes {
		if n.Name != "" && IsReservedName(n.Name) {
			vg.addError(ErrReservedName, id, "name \""+n.Name+"\" is reserved")
		}
	}
}
