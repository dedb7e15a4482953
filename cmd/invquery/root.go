package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"invquery/config"
	"invquery/graphdb"
	"invquery/schema"
	"invquery/traversal"
)

// cli carries the persistent flags and the app built from them
type cli struct {
	configPath  string
	logLevel    string
	dumpMetrics bool

	app *app
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "invquery",
		Short: "Query an inventory graph with stored queries and edge rules",
		Long: `invquery answers relationship questions over an inventory graph.
Traversals come from named stored queries or from structured relation
requests resolved against the edge rule catalog.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.app == nil || !c.dumpMetrics {
				return nil
			}
			return writeMetrics(cmd.ErrOrStderr(), c.app)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "etc/invquery.yaml", "path to the configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().BoolVar(&c.dumpMetrics, "metrics", false, "print engine metrics to stderr on exit")

	root.AddCommand(
		c.loadCmd(),
		c.shapeCmd(traversal.ShapeVertices, "Return the distinct vertices a traversal ends on"),
		c.shapeCmd(traversal.ShapePaths, "Return one vertex path per traverser"),
		c.shapeCmd(traversal.ShapeTree, "Return one containment tree per start vertex"),
		c.queriesCmd(),
		c.rulesCmd(),
		c.replCmd(),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		return err
	}
	a, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

// close releases the store opened by setup
func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}

// writeMetrics renders the engine registry in the Prometheus text format
func writeMetrics(w io.Writer, a *app) error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load SEED",
		Short: "Load a YAML or JSON seed graph into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := graphdb.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			ids, err := c.app.db.Load(cmd.Context(), seed)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"component": "Main",
				"seed":      args[0],
				"vertices":  len(ids),
				"edges":     len(seed.Edges),
			}).Info("Seed loaded")
			return printJSON(cmd.OutOrStdout(), c.app.db.Stats())
		},
	}
}

func (c *cli) shapeCmd(shape traversal.Shape, short string) *cobra.Command {
	var q queryArgs
	cmd := &cobra.Command{
		Use:   shape.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := q.invocation()
			if err != nil {
				return err
			}
			result, err := c.app.engine.Invoke(cmd.Context(), inv, shape)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.query, "query", "q", "", "stored query name")
	f.StringVar(&q.startType, "start-type", "", "starting node type of a relation request")
	f.StringVar(&q.relatedType, "related-type", "", "related node type of a relation request")
	f.StringVar(&q.edgeType, "edge-type", "", "edge classification of a relation request (TREE, COUSIN)")
	f.StringVar(&q.nodeType, "node-type", "", "node type of the start vertices")
	f.StringArrayVarP(&q.where, "where", "w", nil, "start vertex property key=value (repeatable)")
	f.StringArrayVarP(&q.params, "param", "p", nil, "stored query parameter key=value; key=a,b binds a list (repeatable)")
	return cmd
}

func (c *cli) queriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queries",
		Short: "List the stored query names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := c.app.engine.QueryNames(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func (c *cli) rulesCmd() *cobra.Command {
	var q schema.RuleQuery
	var typ string
	cmd := &cobra.Command{
		Use:   "rules [NODE-TYPE [NODE-TYPE]]",
		Short: "List edge rules, optionally for one node type or a pair",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				q.From = args[0]
			}
			if len(args) > 1 {
				q.To = args[1]
			}
			if typ != "" {
				t, err := schema.ParseClassification(typ)
				if err != nil {
					return err
				}
				q.Type = t
			}
			rules := c.app.engine.Rules().Rules(q)
			if len(rules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no matching edge rules")
				return nil
			}
			for _, r := range rules {
				fmt.Fprintln(cmd.OutOrStdout(), r.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only rules of this classification (TREE, COUSIN, PRIVATE)")
	cmd.Flags().StringVar(&q.Label, "label", "", "only rules with this edge label")
	return cmd
}

func (c *cli) replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive query shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs := newReplState(c.app, cmd.InOrStdin(), cmd.OutOrStdout())
			return rs.runREPL(cmd.Context())
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
