package graph

import (
	"fmt"
	"strings"
)

// Mermaid renders the compiled graph as a Mermaid flowchart. Fixed edges are
// solid arrows, conditional edges carry their routing key as a label and the
// fallback target is drawn dotted.
func (g *Graph[S, U]) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    __start__((start))\n")
	for _, name := range g.order {
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", mermaidID(name), name))
	}
	sb.WriteString("    __end__((end))\n")
	sb.WriteString(fmt.Sprintf("    __start__ --> %s\n", mermaidID(g.entry)))

	for _, name := range g.order {
		e := g.edges[name]
		from := mermaidID(name)
		if e.kind == edgeFixed {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", from, mermaidID(e.to)))
			continue
		}
		for _, key := range e.keys {
			label := strings.ReplaceAll(key, "\"", "'")
			sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", from, label, mermaidID(e.targets[key])))
		}
		sb.WriteString(fmt.Sprintf("    %s -. fallback .-> %s\n", from, mermaidID(e.fallback)))
	}
	return sb.String()
}

// mermaidID replaces characters Mermaid does not accept in node ids.
func mermaidID(id string) string {
	if id == END {
		return "__end__"
	}
	r := strings.NewReplacer(" ", "_", "-", "_", "/", "_", ".", "_", ":", "_")
	return r.Replace(id)
}
