package main

import (
	"strings"

	"github.com/spf13/cobra"

	"capgate/internal/app"
	"capgate/internal/registry"
)

func newValidateCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the profile and catalog without serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.serveConfig()
			cfg.Inspect = true
			summary, err := app.Validate(cmd.Context(), cfg, opts.logging())
			if err != nil {
				return exitError{code: 2, message: "invalid configuration: " + err.Error()}
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newCatalogCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the tool catalog as a client would see it",
	}
	cmd.AddCommand(
		newCatalogDiscoverCmd(opts),
		newCatalogSearchCmd(opts),
	)
	return cmd
}

func newCatalogDiscoverCmd(opts *cliOptions) *cobra.Command {
	var hint string
	cmd := &cobra.Command{
		Use:       "discover [" + strings.Join(registry.DiscoverKinds(), "|") + "]",
		Short:     "Print a discovery view of the catalog (default tree)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: registry.DiscoverKinds(),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := registry.DiscoverTree
			if len(args) == 1 {
				kind = registry.DiscoverKind(args[0])
			}
			return opts.withRegistry(cmd.Context(), func(reg *registry.Registry) error {
				resp := reg.Discover(cmd.Context(), registry.DiscoverRequest{Type: kind, Context: hint})
				if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
				if !resp.Success {
					return exitSilent(1)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hint, "context", "", "free-text task description for recommendations")
	return cmd
}

func newCatalogSearchCmd(opts *cliOptions) *cobra.Command {
	var (
		categories []string
		tags       []string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tools by name, tag and description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := registry.SearchRequest{
				Filter: registry.SearchFilter{Categories: categories, Tags: tags},
				Limit:  limit,
			}
			if len(args) == 1 {
				req.Query = args[0]
			}
			return opts.withRegistry(cmd.Context(), func(reg *registry.Registry) error {
				resp := reg.Search(cmd.Context(), req)
				if err := writeJSON(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
				if !resp.Success {
					return exitSilent(1)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&categories, "category", nil, "restrict to categories (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "restrict to tags (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results")
	return cmd
}

func newProfileCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect deployment profiles",
	}
	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective profile after overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging, err := app.NewLogging(opts.logging())
			if err != nil {
				return err
			}
			profile, err := app.NewProfile(cmd.Context(), opts.serveConfig(), app.NewLogger(logging))
			if err != nil {
				return err
			}
			return writeProfile(cmd.OutOrStdout(), profile, format)
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "output format: yaml, toml or json")
	cmd.AddCommand(show)
	return cmd
}
