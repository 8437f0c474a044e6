package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/NimaFathima/astrobiomers/internal/app"
	"github.com/NimaFathima/astrobiomers/internal/config"
	"github.com/NimaFathima/astrobiomers/pkg/common"
	"github.com/NimaFathima/astrobiomers/pkg/graph"
	"github.com/NimaFathima/astrobiomers/pkg/loader"
	ioloader "github.com/NimaFathima/astrobiomers/pkg/loader/io"
	"github.com/NimaFathima/astrobiomers/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Build and inspect the space biology knowledge graph",
	Long: `Run the extraction pipeline over a JSON or JSONL corpus of papers.

Examples:
  pipeline ingest papers.jsonl        # extract and write to Neo4j
  pipeline extract papers.json        # print extracted entities and relations
  pipeline stats papers.json          # print extraction statistics
  pipeline migrate                    # apply document corpus migrations`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		app.InitLogger(cfg.Server, "pipeline")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(ingestCmd, extractCmd, statsCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = logger.Close()
	if err != nil {
		os.Exit(1)
	}
}

func loadPapers(ctx context.Context, path string) ([]common.Paper, error) {
	file := loader.NewCorpusFile(path, ioloader.NewIOCorpusLoader())
	papers, err := file.GetPapers(ctx)
	if err != nil {
		return nil, err
	}
	if len(papers) == 0 {
		return nil, fmt.Errorf("no papers found in %s", path)
	}
	logger.Info("[Corpus] Loaded papers", "path", path, "papers", len(papers))
	return papers, nil
}

// offlineGraphClient builds the extractors without connecting to any store.
func offlineGraphClient() (*graph.GraphClient, error) {
	aiClient, err := app.NewAIClient(cfg.AI)
	if err != nil {
		return nil, err
	}
	return app.NewGraphClient(cfg, aiClient)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
