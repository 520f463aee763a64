// Command raectl is a CLI front end for pkg/rae's Engine facade, mirroring
// cmd/sqvect's package-level-flag cobra layout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/core"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/rae"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/raeconfig"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/retrieval"
	"github.com/dreamsoft-pro/RAE-agentic-memory-sub010/pkg/worker"
)

var (
	dbPath string
	dim    int
)

var rootCmd = &cobra.Command{
	Use:   "raectl",
	Short: "CLI for the reflective agentic-memory engine",
	Long:  "raectl manages a RAE database: storing and retrieving memory artifacts, running reflection, and tuning per-tenant configuration.",
}

// engineConfig builds a rae.Config from the persistent --db/--dim flags.
func engineConfig() rae.Config {
	cfg := rae.DefaultConfig(dbPath)
	cfg.VectorDim = dim
	return cfg
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new RAE database",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := rae.Open(engineConfig())
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}
		defer e.Close()
		fmt.Printf("RAE database initialized at %s\n", dbPath)
		return nil
	},
}

func parseVector(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		vec = append(vec, float32(v))
	}
	return vec, nil
}

var storeCmd = &cobra.Command{
	Use:   "store <tenant>",
	Short: "Store a memory artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := args[0]
		content, _ := cmd.Flags().GetString("content")
		layer, _ := cmd.Flags().GetString("layer")
		vectorStr, _ := cmd.Flags().GetString("vector")
		docID, _ := cmd.Flags().GetString("doc-id")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		e, err := rae.Open(engineConfig())
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer e.Close()

		artifact := &core.MemoryArtifact{
			Layer:   core.Layer(layer),
			Content: content,
			DocID:   docID,
			Vector:  vector,
		}
		id, err := e.Store(context.Background(), tenantID, artifact)
		if err != nil {
			return fmt.Errorf("store failed: %w", err)
		}
		fmt.Printf("stored artifact %s\n", id)
		return nil
	},
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <tenant>",
	Short: "Run the retrieval cascade against a query vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := args[0]
		text, _ := cmd.Flags().GetString("text")
		vectorStr, _ := cmd.Flags().GetString("vector")
		kFinal, _ := cmd.Flags().GetInt("k-final")
		asJSON, _ := cmd.Flags().GetBool("json")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		e, err := rae.Open(engineConfig())
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer e.Close()

		result, err := e.Retrieve(context.Background(), retrieval.Query{
			TenantID:    tenantID,
			Text:        text,
			ShortVector: vector,
			KFinal:      kFinal,
		})
		if err != nil {
			return fmt.Errorf("retrieve failed: %w", err)
		}

		if asJSON {
			data, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		for _, a := range result.Artifacts {
			fmt.Printf("%s\t%.4f\t%s\n", a.ID, a.Score, a.Content)
		}
		return nil
	},
}

var reflectCmd = &cobra.Command{
	Use:   "reflect <tenant>",
	Short: "Run one hierarchical reflection pass for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := rae.Open(engineConfig())
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer e.Close()

		artifact, err := e.Reflect(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("reflect failed (no LLM provider is wired into raectl; use the Engine API directly with WithLLM for a real deployment): %w", err)
		}
		if artifact == nil {
			fmt.Println("no reflection produced: nothing to reflect on")
			return nil
		}
		fmt.Printf("reflection artifact %s: %s\n", artifact.ID, artifact.Content)
		return nil
	},
}

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage per-tenant configuration",
}

var tenantSetCmd = &cobra.Command{
	Use:   "set <tenant>",
	Short: "Validate and register a tenant's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k1, _ := cmd.Flags().GetInt("k1")
		k2, _ := cmd.Flags().GetInt("k2")
		k3, _ := cmd.Flags().GetInt("k3")
		baseRate, _ := cmd.Flags().GetFloat64("decay-base-rate")
		budget, _ := cmd.Flags().GetInt("context-budget")

		cfg := raeconfig.DefaultConfig(args[0])
		if k1 > 0 {
			cfg.Retrieval.K1 = k1
		}
		if k2 > 0 {
			cfg.Retrieval.K2 = k2
		}
		if k3 > 0 {
			cfg.Retrieval.K3 = k3
		}
		if baseRate > 0 {
			cfg.DecayBaseRate = baseRate
		}
		if budget > 0 {
			cfg.DefaultContextBudget = budget
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid tenant configuration: %w", err)
		}
		fmt.Printf("tenant %s configuration is valid\n", args[0])
		return nil
	},
}

var workerRunCmd = &cobra.Command{
	Use:   "worker-run <tenant> [tenant...]",
	Short: "Run decay and pruning once for the given tenants",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := rae.Open(engineConfig())
		if err != nil {
			return fmt.Errorf("failed to open engine: %w", err)
		}
		defer e.Close()

		for _, tenantID := range args {
			if err := e.SetTenantConfig(raeconfig.DefaultConfig(tenantID)); err != nil {
				return fmt.Errorf("registering tenant %s: %w", tenantID, err)
			}
		}

		ctx := context.Background()
		if err := e.StartWorkers(ctx, worker.DefaultReflectionSchedule); err != nil {
			return fmt.Errorf("failed to start workers: %w", err)
		}
		defer e.StopWorkers(ctx)

		fmt.Printf("maintenance tasks scheduled for %d tenant(s)\n", len(args))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "rae.db", "Path to the RAE database file")
	rootCmd.PersistentFlags().IntVar(&dim, "dim", 0, "Vector dimension (0 for auto-detect)")

	storeCmd.Flags().String("content", "", "Artifact content")
	storeCmd.Flags().String("layer", string(core.LayerEpisodic), "Memory layer (episodic/semantic/reflective)")
	storeCmd.Flags().String("vector", "", "Artifact vector, comma-separated")
	storeCmd.Flags().String("doc-id", "", "Originating document ID")

	retrieveCmd.Flags().String("text", "", "Query text")
	retrieveCmd.Flags().String("vector", "", "Query short-vector, comma-separated")
	retrieveCmd.Flags().Int("k-final", 10, "Desired final result count")
	retrieveCmd.Flags().Bool("json", false, "Output as JSON")

	tenantSetCmd.Flags().Int("k1", 0, "Lexical prefilter keep count")
	tenantSetCmd.Flags().Int("k2", 0, "Short-vector recall keep count")
	tenantSetCmd.Flags().Int("k3", 0, "Long-vector rerank keep count")
	tenantSetCmd.Flags().Float64("decay-base-rate", 0, "Importance decay base rate")
	tenantSetCmd.Flags().Int("context-budget", 0, "Default context assembly token budget")

	tenantCmd.AddCommand(tenantSetCmd)

	rootCmd.AddCommand(
		initCmd,
		storeCmd,
		retrieveCmd,
		reflectCmd,
		tenantCmd,
		workerRunCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
