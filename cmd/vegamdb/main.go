package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"vegamdb"
	"vegamdb/internal/config"
	"vegamdb/internal/server"
	"vegamdb/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "vegamdb",
	Short: "Embeddable vector database with flat, IVF and Annoy indexes",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logLevel != "" {
			logger.SetLevel(logLevel)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.FromFile(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = loaded
		}
		if logLevel == "" {
			logger.SetLevel(cfg.LogLevel)
		}

		db := vegamdb.New()
		db.SetSeed(cfg.Seed)
		if _, err := os.Stat(cfg.DataPath); err == nil {
			if err := db.Load(cfg.DataPath); err != nil {
				return fmt.Errorf("failed to load database: %w", err)
			}
			logger.Info("Loaded database", "path", cfg.DataPath, "size", db.Size())
		}

		srv, err := server.New(db, cfg)
		if err != nil {
			return err
		}
		logger.Info("Serving", "listen", cfg.Listen)
		return srv.Run(cfg.Listen)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <vectors.json>",
	Short: "Load a JSON matrix of vectors into the database file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var rows [][]float32
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("invalid vectors file: %w", err)
		}

		db := vegamdb.New()
		if _, err := os.Stat(dbPath); err == nil {
			if err := db.Load(dbPath); err != nil {
				return fmt.Errorf("failed to load database: %w", err)
			}
		}
		ids, err := db.AddVectorBatch(rows)
		if err != nil {
			return err
		}
		if err := db.Save(dbPath); err != nil {
			return err
		}
		fmt.Printf("Ingested %d vectors into %s (size now %d)\n", len(ids), dbPath, db.Size())
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the database file; the query is comma-separated floats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		var query []float32
		for _, part := range strings.Split(args[0], ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
			if err != nil {
				return fmt.Errorf("invalid query component %q: %w", part, err)
			}
			query = append(query, float32(v))
		}

		db := vegamdb.New()
		if err := db.Load(dbPath); err != nil {
			return fmt.Errorf("failed to load database: %w", err)
		}
		res, err := db.Search(query, k)
		if err != nil {
			return err
		}
		for i := range res.IDs {
			fmt.Printf("%d\t%g\n", res.IDs[i], res.Distances[i])
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print size, dimension and index state of the database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := vegamdb.New()
		if err := db.Load(dbPath); err != nil {
			return fmt.Errorf("failed to load database: %w", err)
		}
		st := db.Stats()
		fmt.Printf("size: %d\ndimension: %d\nindex: %s\nbuilt: %v\n", st.Size, st.Dimension, st.IndexKind, st.Built)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	for _, c := range []*cobra.Command{ingestCmd, searchCmd, infoCmd} {
		c.Flags().StringVar(&dbPath, "db", "vegamdb.bin", "database file")
	}
	searchCmd.Flags().Int("k", 5, "number of neighbors")
	rootCmd.AddCommand(serveCmd, ingestCmd, searchCmd, infoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
