package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookclub-catalog/catalog"
)

// seededDB writes a small catalog to a temporary database and returns its path.
func seededDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	mgr, err := catalog.NewCatalogManager(path)
	if err != nil {
		t.Fatalf("NewCatalogManager: %v", err)
	}
	defer mgr.Close()

	_, _, err = mgr.ImportSeed(&catalog.Seed{
		Users: []catalog.SeedUser{
			{Login: "a.belov@example.com", Password: "Fh9jQw", Role: "Client", FullName: "Alexey Belov"},
		},
		Books: []catalog.SeedBook{
			{Article: "B320R5", Title: "War and Peace", Author: "Leo Tolstoy", Genre: "Epic novel", Price: 990, StockQuantity: 5},
			{Article: "G432E4", Title: "The Alchemist", Author: "Paulo Coelho", Genre: "Parable", Price: 370},
		},
	})
	if err != nil {
		t.Fatalf("ImportSeed: %v", err)
	}
	return path
}

func newManager(t *testing.T) *catalog.CatalogManager {
	t.Helper()
	mgr, err := catalog.NewCatalogManager(seededDB(t))
	if err != nil {
		t.Fatalf("NewCatalogManager: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// execute runs the root command in an empty working directory.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	root := newRootCmd()
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func run(t *testing.T, script string) string {
	t.Helper()
	var out bytes.Buffer
	runInteractive(strings.NewReader(script), &out, newManager(t), nil)
	return out.String()
}

func TestInteractiveLoginAndSearch(t *testing.T) {
	out := run(t, "login\na.belov@example.com\nFh9jQw\nsearch\nwar\nwhoami\nexit\n")

	for _, want := range []string{
		"Welcome, Alexey Belov (Client)",
		"Found 1 book(s) matching 'war'",
		"Goodbye!",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInteractiveBadPassword(t *testing.T) {
	out := run(t, "login\na.belov@example.com\nwrong\nexit\n")
	if !strings.Contains(out, "Invalid credentials.") {
		t.Errorf("expected rejection, got:\n%s", out)
	}
	if strings.Contains(out, "Welcome") {
		t.Errorf("rejected login must not open a session:\n%s", out)
	}
}

func TestInteractiveGuestCannotSearch(t *testing.T) {
	out := run(t, "guest\nsearch\nlogout\nexit\n")
	if !strings.Contains(out, "Welcome, Guest (Guest)") {
		t.Errorf("expected guest welcome:\n%s", out)
	}
	if !strings.Contains(out, catalog.ErrSearchDisabled.Error()) {
		t.Errorf("expected search to be refused for guest:\n%s", out)
	}
	if !strings.Contains(out, "Session closed.") {
		t.Errorf("expected logout:\n%s", out)
	}
}

func TestInteractiveShow(t *testing.T) {
	out := run(t, "guest\nshow\ng432e4\nshow\nZZZ\nexit\n")
	if !strings.Contains(out, "The Alchemist | Paulo Coelho") {
		t.Errorf("expected book details:\n%s", out)
	}
	if !strings.Contains(out, "In stock:  none") {
		t.Errorf("expected out of stock line:\n%s", out)
	}
	if !strings.Contains(out, "No book with article ZZZ.") {
		t.Errorf("expected missing article message:\n%s", out)
	}
}

func TestBooksCommand(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, "", "--db", db, "books")
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	alchemist, war := strings.Index(out, "The Alchemist"), strings.Index(out, "War and Peace")
	if alchemist < 0 || war < 0 || alchemist > war {
		t.Fatalf("expected both books sorted by title:\n%s", out)
	}
	if !strings.Contains(out, "OUT OF STOCK") {
		t.Fatalf("expected out of stock marker:\n%s", out)
	}

	out, err = execute(t, "", "--db", db, "books", "TOLSTOY")
	if err != nil {
		t.Fatalf("books search: %v", err)
	}
	if !strings.Contains(out, "Found 1 book(s) matching 'TOLSTOY'") || strings.Contains(out, "The Alchemist") {
		t.Fatalf("unexpected search output:\n%s", out)
	}
}

func TestShowCommandMatchesArticleCaseInsensitively(t *testing.T) {
	db := seededDB(t)

	for _, article := range []string{"B320R5", "b320r5"} {
		out, err := execute(t, "", "--db", db, "show", article)
		if err != nil {
			t.Fatalf("show %s: %v", article, err)
		}
		if !strings.Contains(out, "War and Peace | Leo Tolstoy") || !strings.Contains(out, "Article:   B320R5") {
			t.Fatalf("show %s:\n%s", article, out)
		}
	}

	if _, err := execute(t, "", "--db", db, "show", "ZZZ"); err == nil {
		t.Fatalf("show of a missing article should fail")
	}
}

func TestPasswdCommand(t *testing.T) {
	db := seededDB(t)

	if _, err := execute(t, "n3wPass\nother\n", "--db", db, "passwd", "a.belov@example.com"); err == nil {
		t.Fatalf("mismatched confirmation accepted")
	}
	if _, err := execute(t, "x\nx\n", "--db", db, "passwd", "nobody@example.com"); err == nil {
		t.Fatalf("unknown login accepted")
	}
	out, err := execute(t, "n3wPass\nn3wPass\n", "--db", db, "passwd", "a.belov@example.com")
	if err != nil {
		t.Fatalf("passwd: %v", err)
	}
	if !strings.Contains(out, "Password updated for a.belov@example.com.") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	mgr, err := catalog.NewCatalogManager(db)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer mgr.Close()
	if mgr.Login("a.belov@example.com", "Fh9jQw") != nil {
		t.Fatalf("old password still works")
	}
	if mgr.Login("a.belov@example.com", "n3wPass") == nil {
		t.Fatalf("new password rejected")
	}
}

func TestCommandsWithoutCatalogCreateNoDatabase(t *testing.T) {
	for _, args := range [][]string{
		{"version"},
		{"help"},
		{"completion", "bash"},
	} {
		if _, err := execute(t, "", args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if _, err := os.Stat("literature_club.db"); !os.IsNotExist(err) {
			t.Fatalf("%v created the catalog database (stat err %v)", args, err)
		}
	}
}
