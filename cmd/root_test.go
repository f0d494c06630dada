package cmd

import (
	"path/filepath"
	"testing"
)

func TestRootFlagsReachConfig(t *testing.T) {
	catalog, err := filepath.Abs(filepath.Join("..", "config", "products.example.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	t.Chdir(t.TempDir())
	for _, key := range []string{"PRICEWATCH_CATALOG", "PRICEWATCH_STORE", "PRICEWATCH_MAX_CONCURRENT", "DATABASE_URL", "REDIS_URL"} {
		t.Setenv(key, "")
	}

	if rootCmd.PersistentPreRunE == nil {
		t.Fatal("root command has no config hook")
	}
	rootCmd.SetArgs([]string{"sites", "--catalog", catalog, "--store", "memory", "--concurrency", "4"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("sites: %v", err)
	}
	if cfg.CatalogPath != catalog || cfg.StoreBackend != "memory" || cfg.MaxConcurrent != 4 {
		t.Errorf("flags not applied: catalog=%q store=%q concurrency=%d", cfg.CatalogPath, cfg.StoreBackend, cfg.MaxConcurrent)
	}
}
