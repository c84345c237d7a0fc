// Package main provides the cite CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/cite/cli"
)

var (
	// Global flags
	provider   string
	preference string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "cite",
		Short: "Risk-aware LLM dispatch with multi-judge consensus",
		Long: `A CLI for streaming LLM conversations through an adaptive dispatch stack.

Every turn is risk-classified by a panel of judge models, routed to a
response profile, and generated through cost-ordered model fallback
with per-model adaptive concurrency control.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "anthropic", "Default provider for generation settings (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&preference, "profile", "auto", "Response profile preference (auto, basic, balanced, careful)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show process events and debug logs")

	// Add commands
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive risk-aware chat session",
		Long: `Start an interactive chat session.

Each turn runs the full pipeline: risk classification across the judge
panel, profile routing, and streamed generation with model fallback.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), options())
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [message]",
		Short: "Classify the risk level of a single message",
		Long: `Run the multi-judge risk pipeline over one message and print the
consensus verdict: level, confidence, inter-judge agreement, and any
detected risk types.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Classify(context.Background(), args[0], options())
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List usable catalog models with prices and capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Models(options())
		},
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:   provider,
		Preference: preference,
		Verbose:    verbose,
	}
}
