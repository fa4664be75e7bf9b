// Package process is the registry of transaction processes known to the
// service.
package process

import (
	"fmt"
	"slices"
	"strings"

	"github.com/neomorfeo/marketflow/internal/domain"
	"github.com/neomorfeo/marketflow/internal/process/negotiation"
	"github.com/neomorfeo/marketflow/internal/process/sellpurchase"
)

var registry = map[string]domain.Process{
	sellpurchase.Name: sellpurchase.Process,
	negotiation.Name:  negotiation.Process,
}

// Lookup returns the process registered under name.
func Lookup(name string) (domain.Process, error) {
	p, ok := registry[name]
	if !ok {
		return domain.Process{}, fmt.Errorf("%w: %q", domain.ErrUnknownProcess, name)
	}
	return p, nil
}

// Names returns the registered process names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// GraphIDs returns the IDs of the registered process graphs, sorted.
func GraphIDs() []string {
	out := make([]string, 0, len(registry))
	for _, p := range registry {
		out = append(out, p.Graph.ID)
	}
	slices.Sort(out)
	return out
}

// DOT renders a graph in Graphviz DOT. Edges sharing the same endpoints are
// merged into one labelled edge; final states are drawn as double circles.
func DOT(g domain.Graph) string {
	var b strings.Builder

	fmt.Fprintf(&b, "digraph %q {\n", g.ID)
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=circle, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")
	b.WriteString("  __start [shape=point, style=invis];\n")
	fmt.Fprintf(&b, "  __start -> %q [label=\" initial\"];\n\n", g.Initial)

	states := g.StateNames()
	for _, s := range states {
		if g.States[s].Final() {
			fmt.Fprintf(&b, "  %q [shape=doublecircle];\n", s)
		} else {
			fmt.Fprintf(&b, "  %q;\n", s)
		}
	}
	b.WriteString("\n")

	for _, from := range states {
		byDst := make(map[domain.State][]string)
		for t, dst := range g.States[from].On {
			byDst[dst] = append(byDst[dst], strings.TrimPrefix(string(t), "transition/"))
		}

		dsts := make([]domain.State, 0, len(byDst))
		for dst := range byDst {
			dsts = append(dsts, dst)
		}
		slices.Sort(dsts)

		for _, dst := range dsts {
			labels := byDst[dst]
			slices.Sort(labels)
			fmt.Fprintf(&b, "  %q -> %q [label=\"%s\"];\n", from, dst, strings.Join(labels, "\\n"))
		}
	}

	b.WriteString("}\n")
	return b.String()
}
