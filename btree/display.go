package btree

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// DisplayMode selects the traversal format Display produces, named
// after original_source/btree.cc's BTreeDisplayType.
type DisplayMode int

const (
	// DisplayDepth prints an indented depth-first dump.
	DisplayDepth DisplayMode = iota
	// DisplayDepthDot prints a Graphviz "digraph tree { ... }".
	DisplayDepthDot
	// DisplaySortedKeyVal prints in-order (key, value) pairs, one per line.
	DisplaySortedKeyVal
)

// Display performs a depth-first traversal from the root in the given
// mode, per spec.md §4.7.
func (t *Tree) Display(w io.Writer, mode DisplayMode) error {
	if mode == DisplayDepthDot {
		fmt.Fprintln(w, "digraph tree {")
	}
	if err := t.displayNode(w, t.super.RootNode(), 0, mode); err != nil {
		return err
	}
	if mode == DisplayDepthDot {
		fmt.Fprintln(w, "}")
	}
	return nil
}

func (t *Tree) displayNode(w io.Writer, id uint32, depth int, mode DisplayMode) error {
	node, err := t.readNode(id)
	if err != nil {
		return err
	}

	indent := strings.Repeat("\t", depth)

	switch node.Kind() {
	case kindLeaf:
		if mode == DisplayDepthDot {
			fmt.Fprintf(w, "%d [label=\"%d: Leaf: ", id, id)
		} else if mode == DisplayDepth {
			fmt.Fprintf(w, "%s%d: Leaf: ", indent, id)
		}
		for i := 0; i < node.NumKeys(); i++ {
			k, err := node.Key(i)
			if err != nil {
				return err
			}
			v, err := node.Value(i)
			if err != nil {
				return err
			}
			switch mode {
			case DisplaySortedKeyVal:
				fmt.Fprintf(w, "(%s,%s)\n", k, v)
			default:
				fmt.Fprintf(w, "%s ", k)
			}
		}
		if mode == DisplayDepthDot {
			fmt.Fprint(w, "\"];\n")
		} else if mode == DisplayDepth {
			fmt.Fprintln(w)
		}
		return nil

	case kindInterior, kindRoot:
		if mode == DisplayDepthDot {
			fmt.Fprintf(w, "%d [label=\"%d: Interior\"];\n", id, id)
		} else if mode == DisplayDepth {
			fmt.Fprintf(w, "%s%d: Interior:", indent, id)
			for i := 0; i < node.NumKeys(); i++ {
				k, err := node.Key(i)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, " %s", k)
			}
			fmt.Fprintln(w)
		}
		for i := 0; i <= node.NumKeys(); i++ {
			child, err := node.Child(i)
			if err != nil {
				return err
			}
			if mode == DisplayDepthDot {
				fmt.Fprintf(w, "%d -> %d;\n", id, child)
			}
			if err := t.displayNode(w, child, depth+1, mode); err != nil {
				return err
			}
		}
		return nil

	default:
		return errors.Wrapf(ErrCorruption, "display: illegal nodetype at block %d", id)
	}
}
