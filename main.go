package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"bookclub-catalog/catalog"
	"bookclub-catalog/config"
)

const testAccountHint = "Test account: login a.belov@example.com, password Fh9jQw"

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles what every command needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	manager *catalog.CatalogManager
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var (
		configFile string
		a          app
	)

	root := &cobra.Command{
		Use:          "bookclub",
		Short:        "Browse the literature club catalog",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsCatalog(cmd) {
				return nil
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			if err := config.ConfigureLogging(cfg.Log); err != nil {
				return err
			}
			manager, err := catalog.NewCatalogManager(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("error opening database: %w", err)
			}
			a.cfg, a.manager = cfg, manager
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.manager != nil {
				return a.manager.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			covers := newCoverCache(a.cfg)
			runInteractive(cmd.InOrStdin(), cmd.OutOrStdout(), a.manager, covers)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./config.toml or ./config/config.toml)")
	flags.String("db", "", "path to the SQLite catalog database")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("database.path", flags.Lookup("db"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newBooksCmd(&a),
		newShowCmd(&a),
		newPasswdCmd(&a),
		newServeCmd(&a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

// needsCatalog reports whether cmd works on the catalog database. Help,
// version and shell completion must not create one.
func needsCatalog(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func newBooksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "books [query]",
		Short: "List the catalog, optionally filtered by title, author or genre",
		Args:  cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			query := strings.Join(args, " ")
			printBooks(cmd.OutOrStdout(), a.manager.ListBooks(query), query)
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <article>",
		Short: "Show one book by article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b := a.manager.BookByArticle(args[0])
			if b == nil {
				return fmt.Errorf("no book with article %s", args[0])
			}
			printBook(cmd.OutOrStdout(), b, newCoverCache(a.cfg))
			return nil
		},
	}
}

func newPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <login>",
		Short: "Set a new password for a club member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			sc := bufio.NewScanner(in)

			password, err := readPassword(sc, in, out, "New password: ")
			if err != nil {
				return fmt.Errorf("error reading password: %w", err)
			}
			confirm, err := readPassword(sc, in, out, "Confirm password: ")
			if err != nil {
				return fmt.Errorf("error reading password: %w", err)
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}
			if err := a.manager.ResetPassword(args[0], password); err != nil {
				return fmt.Errorf("error resetting password: %w", err)
			}
			fmt.Fprintf(out, "Password updated for %s.\n", args[0])
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// Interactive session
// ---------------------------------------------------------------------------

// readPassword securely reads a password with masking when in is a terminal.
func readPassword(sc *bufio.Scanner, in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		fmt.Fprintln(out) // Add newline after password input
		return strings.TrimSpace(string(bytePassword)), nil
	}
	if !sc.Scan() {
		return "", io.EOF
	}
	return strings.TrimSpace(sc.Text()), nil
}

// signIn loops until the user logs in, picks guest access, or leaves.
func signIn(sc *bufio.Scanner, in io.Reader, out io.Writer, mgr *catalog.CatalogManager) *catalog.Session {
	fmt.Fprintln(out, "Literature Club")
	fmt.Fprintln(out, "Commands: login, guest, exit")
	fmt.Fprintln(out, testAccountHint)

	for {
		fmt.Fprint(out, "\n> ")
		if !sc.Scan() {
			return nil
		}
		switch strings.TrimSpace(sc.Text()) {
		case "login":
			fmt.Fprint(out, "Login: ")
			if !sc.Scan() {
				return nil
			}
			login := strings.TrimSpace(sc.Text())
			password, err := readPassword(sc, in, out, "Password: ")
			if err != nil {
				fmt.Fprintf(out, "Error reading password: %v\n", err)
				continue
			}
			if login == "" || password == "" {
				fmt.Fprintln(out, "Both login and password are required.")
				continue
			}
			if sess := mgr.Login(login, password); sess != nil {
				return sess
			}
			fmt.Fprintln(out, "Invalid credentials.")
		case "guest":
			return catalog.GuestSession()
		case "exit":
			return nil
		case "":
		default:
			fmt.Fprintln(out, "Unknown command. Type login, guest or exit.")
		}
	}
}

func runInteractive(in io.Reader, out io.Writer, mgr *catalog.CatalogManager, covers *catalog.CoverCache) {
	sc := bufio.NewScanner(in)

	for {
		sess := signIn(sc, in, out, mgr)
		if sess == nil {
			fmt.Fprintln(out, "Goodbye!")
			return
		}
		fmt.Fprintf(out, "\nWelcome, %s\n", sess.DisplayName())
		if browse(sc, out, mgr, covers, sess) {
			fmt.Fprintln(out, "Goodbye!")
			return
		}
	}
}

// browse runs the catalog loop. It returns true when the user asked to exit
// and false on logout.
func browse(sc *bufio.Scanner, out io.Writer, mgr *catalog.CatalogManager, covers *catalog.CoverCache, sess *catalog.Session) bool {
	fmt.Fprintln(out, "Available commands:")
	if sess.CanSearch() {
		fmt.Fprintln(out, "  Catalog: list, search, show")
	} else {
		fmt.Fprintln(out, "  Catalog: list, show (search requires signing in)")
	}
	fmt.Fprintln(out, "  Session: whoami, logout, exit")

	printBooks(out, mgr.ListBooks(""), "")

	for {
		fmt.Fprint(out, "\n> ")
		if !sc.Scan() {
			return true
		}
		switch strings.TrimSpace(sc.Text()) {
		case "list":
			printBooks(out, mgr.ListBooks(""), "")
		case "search":
			handleSearch(sc, out, mgr, sess)
		case "show":
			handleShow(sc, out, mgr, covers)
		case "whoami":
			fmt.Fprintln(out, sess.DisplayName())
		case "logout":
			fmt.Fprintln(out, "Session closed.")
			return false
		case "exit":
			return true
		case "":
		default:
			fmt.Fprintln(out, "Unknown command. Type one of the available commands listed above.")
		}
	}
}

func handleSearch(sc *bufio.Scanner, out io.Writer, mgr *catalog.CatalogManager, sess *catalog.Session) {
	if !sess.CanSearch() {
		fmt.Fprintln(out, catalog.ErrSearchDisabled.Error())
		return
	}
	fmt.Fprint(out, "Query: ")
	if !sc.Scan() {
		return
	}
	query := strings.TrimSpace(sc.Text())
	books, err := mgr.Browse(sess, query)
	if errors.Is(err, catalog.ErrSearchDisabled) {
		fmt.Fprintln(out, err.Error())
		return
	}
	printBooks(out, books, query)
}

func handleShow(sc *bufio.Scanner, out io.Writer, mgr *catalog.CatalogManager, covers *catalog.CoverCache) {
	fmt.Fprint(out, "Article: ")
	if !sc.Scan() {
		return
	}
	article := catalog.NormalizeArticle(sc.Text())
	b := mgr.BookByArticle(article)
	if b == nil {
		fmt.Fprintf(out, "No book with article %s.\n", article)
		return
	}
	printBook(out, b, covers)
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func printBooks(out io.Writer, books []*catalog.Book, query string) {
	if len(books) == 0 {
		if query == "" {
			fmt.Fprintln(out, "The catalog is empty.")
		} else {
			fmt.Fprintf(out, "No books found matching '%s'.\n", query)
		}
		return
	}
	if query != "" {
		fmt.Fprintf(out, "Found %d book(s) matching '%s':\n", len(books), query)
	}
	fmt.Fprintf(out, "%-8s %-30s %-22s %-14s %-28s %s\n", "Article", "Title", "Author", "Genre", "Price", "Stock")
	fmt.Fprintln(out, strings.Repeat("-", 120))
	for _, b := range books {
		fmt.Fprintln(out, catalog.PrettyBook(b))
	}
}

func printBook(out io.Writer, b *catalog.Book, covers *catalog.CoverCache) {
	fmt.Fprintf(out, "%s | %s\n", b.Title, b.Author)
	fmt.Fprintf(out, "Article:   %s\n", b.Article)
	fmt.Fprintf(out, "Genre:     %s\n", b.Genre)
	fmt.Fprintf(out, "Publisher: %s\n", b.Publisher)
	fmt.Fprintf(out, "Year:      %d\n", b.Year)
	if b.Discounted() {
		fmt.Fprintf(out, "Price:     %s (regular %s)\n", catalog.FormatPrice(b.EffectivePrice()), catalog.FormatPrice(b.Price))
	} else {
		fmt.Fprintf(out, "Price:     %s\n", catalog.FormatPrice(b.Price))
	}
	if b.InStock() {
		fmt.Fprintf(out, "In stock:  %d pcs.\n", b.StockQuantity)
	} else {
		fmt.Fprintln(out, "In stock:  none")
	}

	if covers == nil {
		return
	}
	asset, err := covers.Cover(b.Article)
	switch {
	case err == nil && asset.Name == covers.AssetName(b.Article):
		fmt.Fprintf(out, "Cover:     %s (%d bytes)\n", asset.Name, len(asset.Data))
	case err == nil:
		fmt.Fprintln(out, "Cover:     not available (placeholder)")
	default:
		if !errors.Is(err, catalog.ErrCoverNotFound) {
			logrus.WithError(err).WithField("article", b.Article).Warn("cover lookup failed")
		}
		fmt.Fprintln(out, "Cover:     not available")
	}
}
