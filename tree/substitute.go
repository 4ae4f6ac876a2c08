package tree

// Substitute returns a copy of the tree in which every parameter binding in
// the subtree rooted at id whose name is a key in mapping has been replaced
// by the mapped value. Children are rewritten before the node's own
// parameters. The input tree is never mutated; quantifier grounding relies
// on this value semantics to evaluate one candidate tuple per derived copy.
func Substitute(t Tree, id NodeID, mapping map[string]string) Tree {
	out := t.Clone()
	substitute(&out, id, mapping)
	return out
}

func substitute(t *Tree, id NodeID, mapping map[string]string) {
	for _, child := range t.Nodes[id].Children {
		substitute(t, child, mapping)
	}
	params := t.Nodes[id].Params
	for i := range params {
		if replacement, ok := mapping[params[i].Name]; ok {
			params[i].Name = replacement
		}
	}
}

// CartesianProduct returns the n-ary cartesian product of the input lists,
// one element from each list per tuple, with the last list varying fastest.
// An empty set of input lists yields a single empty tuple.
//
// The result size is the product of the list lengths; quantifier grounding
// over k variables is therefore worst-case exponential in k. That cost is
// inherent to existential semantics, not an implementation defect.
func CartesianProduct(lists [][]string) [][]string {
	var result [][]string
	var current []string
	cartesianProduct(&result, &current, lists)
	return result
}

func cartesianProduct(result *[][]string, current *[]string, remaining [][]string) {
	if len(remaining) == 0 {
		tuple := make([]string, len(*current))
		copy(tuple, *current)
		*result = append(*result, tuple)
		return
	}
	for _, value := range remaining[0] {
		*current = append(*current, value)
		cartesianProduct(result, current, remaining[1:])
		*current = (*current)[:len(*current)-1]
	}
}
