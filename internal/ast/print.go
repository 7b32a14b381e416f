package ast

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// PrintOptions controls Fprint output.
type PrintOptions struct {
	// MaxText обрезает text-атрибут до заданной ширины; 0 отключает обрезку.
	MaxText  int
	Comments bool // печатать узлы комментариев
}

// Fprint writes the subtree at root as an indented listing:
//
//	program [1:0]
//	`--class_declaration [1:0]
//	    |--modifiers [1:0]
//	    `--identifier -> Foo [1:13]
func Fprint(w io.Writer, t *Tree, root NodeID, opts PrintOptions) error {
	bw := bufio.NewWriter(w)
	if t.Node(root) != nil {
		printNode(bw, t, root, "", "", opts)
	}
	return bw.Flush()
}

func printNode(w *bufio.Writer, t *Tree, id NodeID, prefix, branch string, opts PrintOptions) {
	n := t.Node(id)
	w.WriteString(prefix)
	w.WriteString(branch)
	w.WriteString(t.Kinds.Name(n.Kind))
	if n.Text != "" {
		text := escapeText(n.Text)
		if opts.MaxText > 0 {
			text = runewidth.Truncate(text, opts.MaxText, "…")
		}
		w.WriteString(" -> ")
		w.WriteString(text)
	}
	fmt.Fprintf(w, " [%d:%d]\n", n.Line, n.Col)

	childPrefix := prefix
	switch branch {
	case "|--":
		childPrefix += "|   "
	case "`--":
		childPrefix += "    "
	}

	var kids []NodeID
	for c := range t.Children(id) {
		if !opts.Comments && t.Kinds.IsComment(t.Node(c).Kind) {
			continue
		}
		kids = append(kids, c)
	}
	for i, c := range kids {
		b := "|--"
		if i == len(kids)-1 {
			b = "`--"
		}
		printNode(w, t, c, childPrefix, b, opts)
	}
}

var textEscaper = strings.NewReplacer("\n", `\n`, "\t", `\t`, "\r", `\r`)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
