// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/typecore/cmd/typecore/config"
	"github.com/AleutianAI/typecore/pkg/graph"
	"github.com/AleutianAI/typecore/pkg/product"
	"github.com/AleutianAI/typecore/pkg/typegraph"
)

func (a *app) predecessorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predecessors",
		Short: "Print the nodes each fixture node is reachable from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, f, _, finish, err := a.startCommand(cmd)
			if err != nil {
				return err
			}
			preds, err := graph.ComputePredecessors(ctx, f.Nodes)
			if err != nil {
				return finish(err)
			}

			out := cmd.OutOrStdout()
			for _, n := range f.Nodes {
				from := preds.Of(n).Slice()
				slices.SortFunc(from, byID)
				fmt.Fprintf(out, "%s: %s\n", n.Name(), nodeNames(from))
			}
			return finish(nil)
		},
	}
}

func (a *app) orderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print reachable nodes in ancestors-first order, starting at the first node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, f, _, finish, err := a.startCommand(cmd)
			if err != nil {
				return err
			}
			order, err := graph.OrderNodes(ctx, f.Nodes)
			if err != nil {
				return finish(err)
			}
			return finish(printLines(cmd.OutOrStdout(), order, (*typegraph.CFGNode).Name))
		},
	}
}

func (a *app) toposortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toposort",
		Short: "Topologically sort the fixture's sort items",
		Long: "Topologically sort the fixture's sort items. On a cycle the items\n" +
			"ordered before it are printed and the command fails.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, f, _, finish, err := a.startCommand(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for item, err := range graph.TopologicalSort(f.Items, graph.Incoming[*typegraph.Item]) {
				if err != nil {
					return finish(err)
				}
				fmt.Fprintln(out, item.Name())
			}
			return finish(nil)
		},
	}
}

func (a *app) productCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "product VAR...",
		Short: "Print the cartesian product of the bindings of the named variables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, f, logger, finish, err := a.startCommand(cmd)
			if err != nil {
				return err
			}
			vars, err := f.VariablesNamed(args...)
			if err != nil {
				return finish(err)
			}

			out := cmd.OutOrStdout()
			rows := 0
			for row := range product.VariableProduct[*typegraph.Binding](vars) {
				parts := make([]string, len(row))
				for i, b := range row {
					parts[i] = b.String()
				}
				fmt.Fprintln(out, strings.Join(parts, " "))
				rows++
			}
			logger.Debug("typecore: product done", slog.Int("rows", rows))
			return finish(nil)
		},
	}
}

func (a *app) deepProductCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "deep-product VAR...",
		Short: "Print every consistent binding combination reachable from the named variables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, f, logger, finish, err := a.startCommand(cmd)
			if err != nil {
				return err
			}
			vars, err := f.VariablesNamed(args...)
			if err != nil {
				return finish(err)
			}
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.ComplexityLimit
			}

			out := cmd.OutOrStdout()
			combos := 0
			seq := product.DeepVariableProduct[*typegraph.Binding](ctx, vars, product.WithComplexityLimit(limit))
			for combo, err := range seq {
				if err != nil {
					return finish(err)
				}
				fmt.Fprintln(out, combo.String())
				combos++
			}
			logger.Debug("typecore: deep product done",
				slog.Int("combinations", combos),
				slog.Int("limit", limit),
			)
			return finish(nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to build (0 = unlimited, default from config)")
	return cmd
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(a.cfg); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		&cobra.Command{
			Use:   "init [PATH]",
			Short: "Write the default configuration (default ~/.typecore/typecore.yaml)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := ""
				if len(args) == 1 {
					path = args[0]
				} else {
					p, err := config.DefaultPath()
					if err != nil {
						return err
					}
					path = p
				}
				if err := config.WriteDefault(path); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			},
		},
	)
	return cmd
}

func byID(a, b *typegraph.CFGNode) int { return cmp.Compare(a.ID(), b.ID()) }

func nodeNames(nodes []*typegraph.CFGNode) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	return strings.Join(names, " ")
}

func printLines[T any](w io.Writer, items []T, name func(T) string) error {
	for _, item := range items {
		if _, err := fmt.Fprintln(w, name(item)); err != nil {
			return err
		}
	}
	return nil
}
