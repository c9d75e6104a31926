package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"bookclub-catalog/catalog"
	"bookclub-catalog/config"
)

func main() {
	flags := pflag.NewFlagSet("import_catalog", pflag.ExitOnError)
	seedPath := flags.String("seed", "seed/catalog.toml", "seed file with users and books")
	configFile := flags.String("config", "", "config file")
	flags.String("db", "", "path to the SQLite catalog database")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	_ = v.BindPFlag("database.path", flags.Lookup("db"))
	cfg, err := config.Load(v, *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := config.ConfigureLogging(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}
	dbPath := cfg.Database.Path

	// Clean up any existing database files
	fmt.Println("Cleaning up existing database files...")
	for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}
	fmt.Println("Database cleanup complete.")

	manager, err := catalog.NewCatalogManager(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	fmt.Printf("Importing catalog from %s...\n", *seedPath)
	users, books, err := manager.ImportSeedFile(*seedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		manager.Close()
		os.Exit(1)
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Users imported: %d\n", users)
	fmt.Printf("Books imported: %d\n", books)
	fmt.Printf("Books in catalog: %d\n", manager.CountBooks())

	if books > 0 {
		fmt.Println("\nImported books:")
		fmt.Printf("%-8s %-45s %-30s\n", "Article", "Title", "Author")
		fmt.Println(strings.Repeat("-", 85))
		for _, b := range manager.ListBooks("") {
			fmt.Printf("%-8s %-45s %-30s\n", b.Article, catalog.Truncate(b.Title, 45), catalog.Truncate(b.Author, 30))
		}
	}
}
