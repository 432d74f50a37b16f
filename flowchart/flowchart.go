// Package flowchart turns a parsed program into a node/edge graph with
// shape-typed nodes, ready for a layout engine. Geometry is advisory: nodes
// carry width/height hints only, and dummy merge nodes have zero size so
// they survive layout without occupying space.
package flowchart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/edulang/pseudo/ast"
)

type NodeKind string

const (
	KindStart    NodeKind = "start"
	KindEnd      NodeKind = "end"
	KindProcess  NodeKind = "process"
	KindIO       NodeKind = "io"
	KindDecision NodeKind = "decision"
)

type Node struct {
	ID         string   `json:"id"`
	Kind       NodeKind `json:"kind"`
	Label      string   `json:"label"`
	WidthHint  float64  `json:"widthHint"`
	HeightHint float64  `json:"heightHint"`
}

type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Build walks the program and emits one independent subgraph per module and
// function. A script without modules becomes a single Start/End subgraph.
func Build(program *ast.Program) *Graph {
	b := &builder{graph: &Graph{}}
	hasModules := false
	for _, s := range program.Statements {
		switch d := s.(type) {
		case ast.ModuleDecl:
			hasModules = true
			b.subgraph("Start "+d.Name, "End "+d.Name, d.Body)
		case ast.FuncDecl:
			b.subgraph("Start Function "+d.Name, "End Function "+d.Name, d.Body)
		}
	}
	if !hasModules {
		var body []ast.Statement
		for _, s := range program.Statements {
			if _, ok := s.(ast.FuncDecl); ok {
				continue
			}
			body = append(body, s)
		}
		b.subgraph("Start", "End", body)
	}
	return b.graph
}

type builder struct {
	graph  *Graph
	nextID int
	// subEnd is the End node of the subgraph being built; Return statements
	// connect to it and terminate their branch.
	subEnd string
}

func (b *builder) subgraph(startLabel, endLabel string, body []ast.Statement) {
	start := b.node(KindStart, startLabel)
	end := b.newID()
	b.subEnd = end
	cur, label := b.walkBlock(body, start, "")
	b.graph.Nodes = append(b.graph.Nodes, sizedNode(end, KindEnd, endLabel))
	if cur != "" {
		b.edge(cur, end, label)
	}
}

func (b *builder) newID() string {
	b.nextID++
	return "n" + strconv.Itoa(b.nextID)
}

func sizedNode(id string, kind NodeKind, label string) Node {
	w := 10 + 8*float64(len(label))
	if w < 80 {
		w = 80
	}
	h := 40.0
	if kind == KindDecision {
		h = 60
	}
	return Node{ID: id, Kind: kind, Label: label, WidthHint: w, HeightHint: h}
}

func (b *builder) node(kind NodeKind, label string) string {
	id := b.newID()
	b.graph.Nodes = append(b.graph.Nodes, sizedNode(id, kind, label))
	return id
}

// dummy is a zero-sized process node used to merge branches while keeping
// the graph topology intact.
func (b *builder) dummy() string {
	id := b.newID()
	b.graph.Nodes = append(b.graph.Nodes, Node{ID: id, Kind: KindProcess, Label: ""})
	return id
}

func (b *builder) edge(from, to, label string) {
	b.graph.Edges = append(b.graph.Edges, Edge{From: from, To: to, Label: label})
}

// walkBlock chains the statements of a block onto (from, pendingLabel) and
// returns the new attach point. An empty attach point means every path
// through the block ended in Return.
func (b *builder) walkBlock(stmts []ast.Statement, from, label string) (string, string) {
	for _, s := range stmts {
		if from == "" {
			break
		}
		from, label = b.walkStatement(s, from, label)
	}
	return from, label
}

func (b *builder) walkStatement(s ast.Statement, from, label string) (string, string) {
	switch st := s.(type) {
	case ast.DeclareStmt:
		return b.chain(KindProcess, declareLabel(st), from, label)

	case ast.SetStmt:
		return b.chain(KindProcess, "Set "+Render(st.Target)+" = "+Render(st.Value), from, label)

	case ast.DisplayStmt:
		parts := make([]string, len(st.Items))
		for i, item := range st.Items {
			parts[i] = Render(item)
		}
		return b.chain(KindIO, "Display "+strings.Join(parts, ", "), from, label)

	case ast.InputStmt:
		return b.chain(KindIO, "Input "+st.Name, from, label)

	case ast.CallStmt:
		return b.chain(KindProcess, "Call "+callLabel(st.Name, st.Args), from, label)

	case ast.ReturnStmt:
		id := b.node(KindProcess, "Return "+Render(st.Value))
		b.edge(from, id, label)
		b.edge(id, b.subEnd, "")
		return "", ""

	case ast.IfStmt:
		dec := b.node(KindDecision, Render(st.Cond))
		b.edge(from, dec, label)
		merge := b.dummy()
		thenEnd, thenLabel := b.walkBlock(st.Then, dec, "True")
		if thenEnd != "" {
			b.edge(thenEnd, merge, thenLabel)
		}
		if st.Else != nil {
			elseEnd, elseLabel := b.walkBlock(st.Else, dec, "False")
			if elseEnd != "" {
				b.edge(elseEnd, merge, elseLabel)
			}
		} else {
			b.edge(dec, merge, "False")
		}
		return merge, ""

	case ast.WhileStmt:
		dec := b.node(KindDecision, Render(st.Cond))
		b.edge(from, dec, label)
		bodyEnd, bodyLabel := b.walkBlock(st.Body, dec, "True")
		if bodyEnd != "" {
			b.edge(bodyEnd, dec, bodyLabel)
		}
		return dec, "False"

	case ast.DoWhileStmt:
		return b.postTestLoop(st.Body, st.Cond, true, from, label)

	case ast.DoUntilStmt:
		return b.postTestLoop(st.Body, st.Cond, false, from, label)

	case ast.ForStmt:
		init := b.node(KindProcess, "Set "+st.Counter+" = "+Render(st.Start))
		b.edge(from, init, label)
		dec := b.node(KindDecision, st.Counter+" <= "+Render(st.End))
		b.edge(init, dec, "")
		bodyEnd, bodyLabel := b.walkBlock(st.Body, dec, "True")
		incr := b.node(KindProcess, "Set "+st.Counter+" = "+st.Counter+" + 1")
		if bodyEnd != "" {
			b.edge(bodyEnd, incr, bodyLabel)
		}
		b.edge(incr, dec, "")
		return dec, "False"

	case ast.ModuleDecl, ast.FuncDecl:
		// nested declarations do not occur; top-level ones are handled by Build
		return from, label

	default:
		return b.chain(KindProcess, "?", from, label)
	}
}

func (b *builder) chain(kind NodeKind, text, from, label string) (string, string) {
	id := b.node(kind, text)
	b.edge(from, id, label)
	return id, ""
}

// postTestLoop emits dummy -> body -> decision with the back edge labeled by
// the branch that repeats: True for Do..While, False for Do..Until.
func (b *builder) postTestLoop(body []ast.Statement, cond ast.Expr, whileTrue bool, from, label string) (string, string) {
	head := b.dummy()
	b.edge(from, head, label)
	bodyEnd, bodyLabel := b.walkBlock(body, head, "")
	dec := b.node(KindDecision, Render(cond))
	if bodyEnd != "" {
		b.edge(bodyEnd, dec, bodyLabel)
	}
	if whileTrue {
		b.edge(dec, head, "True")
		return dec, "False"
	}
	b.edge(dec, head, "False")
	return dec, "True"
}

func declareLabel(st ast.DeclareStmt) string {
	kw := "Declare"
	if st.IsConstant {
		kw = "Constant"
	}
	parts := make([]string, len(st.Declarators))
	for i, d := range st.Declarators {
		s := d.Name
		if d.Size != nil {
			s += "[" + Render(d.Size) + "]"
		}
		if d.Init != nil {
			s += " = " + Render(d.Init)
		}
		parts[i] = s
	}
	return kw + " " + st.DataType + " " + strings.Join(parts, ", ")
}

func callLabel(name string, args []ast.Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Render(a)
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// Render prints an expression back in source syntax: infix operators,
// function-call parentheses and bracketed array access.
func Render(e ast.Expr) string {
	switch ex := e.(type) {
	case ast.NumberLit:
		if ex.IsInt {
			return strconv.FormatInt(int64(ex.Value), 10)
		}
		return strconv.FormatFloat(ex.Value, 'f', -1, 64)
	case ast.StringLit:
		return fmt.Sprintf("%q", ex.Value)
	case ast.Ident:
		return ex.Name
	case ast.ArrayLit:
		parts := make([]string, len(ex.Elements))
		for i, el := range ex.Elements {
			parts[i] = Render(el)
		}
		return strings.Join(parts, ", ")
	case ast.IndexExpr:
		return Render(ex.Array) + "[" + Render(ex.Index) + "]"
	case ast.GroupExpr:
		return "(" + Render(ex.Inner) + ")"
	case ast.UnaryExpr:
		if ex.Op == "Not" {
			return "Not " + Render(ex.Right)
		}
		return ex.Op + Render(ex.Right)
	case ast.BinaryExpr:
		return Render(ex.Left) + " " + ex.Op + " " + Render(ex.Right)
	case ast.CallExpr:
		return callLabel(ex.Callee, ex.Args)
	case ast.TapMarker:
		return "Tap"
	default:
		return "?"
	}
}
