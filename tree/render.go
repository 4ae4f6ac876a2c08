package tree

import (
	"strconv"
	"strings"
)

// Render returns the bracketed condition form of the subtree rooted at id.
// The output doubles as the canonical identity of a function reference
// ("(distance wp1 wp2)") and appears in evaluator diagnostics. Fully bound
// trees render to re-parseable condition text; unbound "?<slot>"
// placeholders render as-is.
func (t *Tree) Render(id NodeID) string {
	var sb strings.Builder
	t.render(&sb, id)
	return sb.String()
}

func (t *Tree) render(sb *strings.Builder, id NodeID) {
	n := &t.Nodes[id]
	switch n.Kind {
	case KindAnd, KindOr:
		sb.WriteString("(")
		sb.WriteString(string(n.Kind))
		for _, c := range n.Children {
			sb.WriteString(" ")
			t.render(sb, c)
		}
		sb.WriteString(")")

	case KindNot:
		sb.WriteString("(not ")
		t.render(sb, n.Children[0])
		sb.WriteString(")")

	case KindPredicate, KindFunction:
		sb.WriteString("(")
		sb.WriteString(n.Name)
		for _, p := range n.Params {
			sb.WriteString(" ")
			sb.WriteString(p.Name)
		}
		sb.WriteString(")")

	case KindExpression, KindFunctionModifier:
		sb.WriteString("(")
		sb.WriteString(string(n.Op))
		for _, c := range n.Children {
			sb.WriteString(" ")
			t.render(sb, c)
		}
		sb.WriteString(")")

	case KindNumber:
		sb.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))

	case KindConstant:
		sb.WriteString(n.Name)

	case KindParameter:
		if len(n.Params) > 0 {
			sb.WriteString(n.Params[0].Name)
		}

	case KindExists:
		sb.WriteString("(exists (")
		for i, p := range n.Params {
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(p.Name)
			if p.Type != "" {
				sb.WriteString(" - ")
				sb.WriteString(p.Type)
			}
		}
		sb.WriteString(") ")
		if len(n.Children) > 0 {
			t.render(sb, n.Children[0])
		} else {
			sb.WriteString("()")
		}
		sb.WriteString(")")
	}
}
