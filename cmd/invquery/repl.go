package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"invquery/engine"
	"invquery/graphdb"
	"invquery/traversal"
)

// replState holds the state of the REPL
type replState struct {
	app       *app
	in        io.Reader
	out       io.Writer
	log       *logrus.Entry
	shape     traversal.Shape
	queryNum  int
	isRunning bool
}

// newReplState initializes the REPL state
func newReplState(a *app, in io.Reader, out io.Writer) *replState {
	return &replState{
		app:       a,
		in:        in,
		out:       out,
		log:       logrus.WithField("component", "Repl"),
		shape:     traversal.ShapeVertices,
		isRunning: true,
	}
}

// printHelp displays the help message
func (rs *replState) printHelp() {
	fmt.Fprintln(rs.out, "invquery REPL commands:")
	fmt.Fprintln(rs.out, "  .help                          Show this help message")
	fmt.Fprintln(rs.out, "  .exit                          Exit the REPL")
	fmt.Fprintln(rs.out, "  .shape vertices|paths|tree     Select the result shape")
	fmt.Fprintln(rs.out, "  .queries                       List stored queries")
	fmt.Fprintln(rs.out, "  .rules <type> <type>           List edge rules between two node types")
	fmt.Fprintln(rs.out, "  .stats                         Show store statistics")
	fmt.Fprintln(rs.out, "  .relate <start> <related> [TREE|COUSIN] [key=value ...]")
	fmt.Fprintln(rs.out, "                                 Run a structured relation request")
	fmt.Fprintln(rs.out, "Stored queries:")
	fmt.Fprintln(rs.out, "  <query> [node-type=<type>] [key=value ...] [-- name=value ...]")
	fmt.Fprintln(rs.out, "      start predicate before '--', parameters after; name=a,b binds a list")
	fmt.Fprintln(rs.out, "  availability-zone-and-complex-from-cloud-region node-type=cloud-region cloud-owner=att")
	fmt.Fprintln(rs.out, "Type '.exit' or 'quit' to exit.")
}

// processCommand processes a REPL command or query
func (rs *replState) processCommand(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if input == "quit" {
		rs.isRunning = false
		return nil
	}

	fields := strings.Fields(input)
	if strings.HasPrefix(fields[0], ".") {
		switch strings.ToLower(fields[0]) {
		case ".help":
			rs.printHelp()
			return nil
		case ".exit":
			rs.isRunning = false
			return nil
		case ".shape":
			if len(fields) != 2 {
				return fmt.Errorf("usage: .shape vertices|paths|tree")
			}
			shape, err := traversal.ParseShape(fields[1])
			if err != nil {
				return err
			}
			rs.shape = shape
			fmt.Fprintf(rs.out, "Result shape: %s\n", shape)
			return nil
		case ".queries":
			return rs.showQueries(ctx)
		case ".rules":
			if len(fields) != 3 {
				return fmt.Errorf("usage: .rules <type> <type>")
			}
			return rs.showRules(fields[1], fields[2])
		case ".stats":
			return rs.showStats()
		case ".relate":
			return rs.relate(ctx, fields[1:])
		default:
			return fmt.Errorf("unknown command: %s; type '.help' for assistance", fields[0])
		}
	}

	inv, err := parseQueryLine(fields)
	if err != nil {
		return err
	}
	return rs.execute(ctx, inv)
}

func (rs *replState) showQueries(ctx context.Context) error {
	names, err := rs.app.engine.QueryNames(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(rs.out, "No stored queries")
		return nil
	}
	fmt.Fprintln(rs.out, "Stored queries:")
	for _, n := range names {
		fmt.Fprintf(rs.out, "  %s\n", n)
	}
	return nil
}

func (rs *replState) showRules(a, b string) error {
	rules := rs.app.engine.Rules().Lookup(a, b)
	if len(rules) == 0 {
		fmt.Fprintf(rs.out, "No edge rules between %s and %s\n", a, b)
		return nil
	}
	for _, r := range rules {
		fmt.Fprintf(rs.out, "  %s\n", r)
	}
	return nil
}

// showStats shows metadata about the store
func (rs *replState) showStats() error {
	st := rs.app.db.Stats()
	fmt.Fprintf(rs.out, "Store: %s\n", rs.app.cfg.Store.Path)
	fmt.Fprintf(rs.out, "  Vertices: %d\n", st.Vertices)
	fmt.Fprintf(rs.out, "  Edges: %d\n", st.Edges)
	fmt.Fprintf(rs.out, "  Node Types: %s\n", strings.Join(st.NodeTypes, ", "))
	fmt.Fprintf(rs.out, "  Pages: %d (%d bytes each)\n", st.Pages, rs.app.cfg.Store.PageSize)
	fmt.Fprintf(rs.out, "  Buffer: %d hits, %d misses\n", st.CacheHits, st.CacheMisses)
	return nil
}

func (rs *replState) relate(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .relate <start> <related> [TREE|COUSIN] [key=value ...]")
	}
	req := traversal.RelationRequest{StartingNodeType: args[0], RelatedToNodeType: args[1]}
	rest := args[2:]
	if len(rest) > 0 && !strings.Contains(rest[0], "=") {
		req.EdgeType = rest[0]
		rest = rest[1:]
	}
	props, err := parseAssignments(rest)
	if err != nil {
		return err
	}
	inv := engine.Invocation{
		Relation: &req,
		Start:    graphdb.Predicate{NodeType: req.StartingNodeType},
	}
	if len(props) > 0 {
		inv.Start.Properties = make(map[string]interface{}, len(props))
		for k, v := range props {
			inv.Start.Properties[k] = v
		}
	}
	return rs.execute(ctx, inv)
}

// execute runs one invocation in the current shape and prints the result
func (rs *replState) execute(ctx context.Context, inv engine.Invocation) error {
	rs.queryNum++
	log := rs.log.WithFields(logrus.Fields{
		"query":     inv.Query,
		"query_num": rs.queryNum,
		"shape":     rs.shape.String(),
	})
	log.Debug("Executing query")
	result, err := rs.app.engine.Invoke(ctx, inv, rs.shape)
	if err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}
	if result.Len() == 0 {
		fmt.Fprintln(rs.out, "No results returned")
		return nil
	}
	switch rs.shape {
	case traversal.ShapePaths:
		for _, p := range result.Paths {
			fmt.Fprintf(rs.out, "  %s\n", formatPath(p))
		}
	case traversal.ShapeTree:
		for _, n := range result.Tree {
			printTree(rs.out, n, 1)
		}
	default:
		for _, v := range result.Vertices {
			fmt.Fprintf(rs.out, "  %s\n", formatVertex(v))
		}
	}
	fmt.Fprintf(rs.out, "(%d results, invocation %s)\n", result.Len(), result.InvocationID)
	return nil
}

// parseQueryLine reads "<query> [node-type=T] [k=v ...] [-- name=value ...]"
func parseQueryLine(fields []string) (engine.Invocation, error) {
	q := queryArgs{query: fields[0]}
	target := &q.where
	for _, f := range fields[1:] {
		if f == "--" {
			target = &q.params
			continue
		}
		if target == &q.where {
			if t, ok := strings.CutPrefix(f, "node-type="); ok {
				q.nodeType = t
				continue
			}
		}
		*target = append(*target, f)
	}
	return q.invocation()
}

func formatVertex(v graphdb.Vertex) string {
	props := make([]string, 0, len(v.Properties))
	for _, p := range v.Properties {
		props = append(props, fmt.Sprintf("%s=%v", p.Key, p.Value))
	}
	return fmt.Sprintf("%s#%d {%s}", v.NodeType, v.ID, strings.Join(props, ", "))
}

func formatPath(p engine.Path) string {
	hops := make([]string, len(p))
	for i, v := range p {
		hops[i] = fmt.Sprintf("%s#%d", v.NodeType, v.ID)
	}
	return strings.Join(hops, " -> ")
}

func printTree(w io.Writer, n *engine.TreeNode, depth int) {
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), formatVertex(n.Vertex))
	for _, c := range n.Children {
		printTree(w, c, depth+1)
	}
}

// runREPL runs the REPL loop until EOF, .exit or cancellation
func (rs *replState) runREPL(ctx context.Context) error {
	rs.log.Info("Starting invquery REPL")
	scanner := bufio.NewScanner(rs.in)
	fmt.Fprintln(rs.out, "Welcome to the invquery REPL. Type '.help' for commands or 'quit' to exit.")

	for rs.isRunning {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintf(rs.out, "invquery(%s)> ", rs.shape)
		if !scanner.Scan() {
			break
		}
		if err := rs.processCommand(ctx, scanner.Text()); err != nil {
			fmt.Fprintf(rs.out, "Error: %v\n", err)
		}
	}
	fmt.Fprintln(rs.out, "Goodbye!")
	return scanner.Err()
}
