package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrSearchDisabled = errors.New("search is not available to guests")

// Session is the signed-in (or guest) user browsing the catalog.
type Session struct {
	User *User
}

// GuestSession returns a session for someone who skipped sign-in.
func GuestSession() *Session {
	return &Session{User: &User{Role: RoleGuest, FullName: "Guest"}}
}

// CanSearch reports whether the session may filter the catalog.
func (s *Session) CanSearch() bool { return s != nil && !s.User.IsGuest() }

// DisplayName renders "Full Name (Role)" for headers.
func (s *Session) DisplayName() string {
	if s == nil || s.User == nil {
		return "Guest (Guest)"
	}
	return fmt.Sprintf("%s (%s)", s.User.FullName, s.User.Role)
}

// CatalogManager is a thin façade over the Database, keeping surface code
// simple. Data-access failures are logged and reported as empty results.
type CatalogManager struct {
	db *Database
}

// NewCatalogManager opens (or creates) the SQLite database at dbPath.
func NewCatalogManager(dbPath string) (*CatalogManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return &CatalogManager{db: db}, nil
}

// Close closes the underlying database.
func (cm *CatalogManager) Close() error { return cm.db.Close() }

// ------------------ Authentication ------------------

// Authenticate returns the matching user, or nil for bad credentials and errors alike.
func (cm *CatalogManager) Authenticate(login, password string) *User {
	u, err := cm.db.AuthenticateUser(login, password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		logrus.WithField("login", login).Info("sign-in rejected")
		return nil
	case err != nil:
		logrus.WithError(err).WithField("login", login).Error("sign-in failed")
		return nil
	}
	logrus.WithFields(logrus.Fields{"login": login, "role": u.Role}).Info("signed in")
	return u
}

// Login wraps Authenticate into a session; nil when sign-in failed.
func (cm *CatalogManager) Login(login, password string) *Session {
	u := cm.Authenticate(login, password)
	if u == nil {
		return nil
	}
	return &Session{User: u}
}

// ResetPassword stores a new password for login.
func (cm *CatalogManager) ResetPassword(login, password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if err := cm.db.ResetPassword(login, password); err != nil {
		return err
	}
	logrus.WithField("login", login).Info("password reset")
	return nil
}

// ------------------ Catalog ------------------

// ListBooks returns the catalog (optionally filtered) sorted by title. It
// never returns nil; on failure the error is logged and the list is empty.
func (cm *CatalogManager) ListBooks(search string) []*Book {
	books, err := cm.db.ListBooks(search)
	if err != nil {
		logrus.WithError(err).WithField("query", search).Error("failed to load books")
		return []*Book{}
	}
	logrus.WithFields(logrus.Fields{"query": search, "found": len(books)}).Debug("books loaded")
	return books
}

// Browse lists books on behalf of sess. Guests only see the full list.
func (cm *CatalogManager) Browse(sess *Session, search string) ([]*Book, error) {
	if strings.TrimSpace(search) != "" && !sess.CanSearch() {
		return []*Book{}, ErrSearchDisabled
	}
	return cm.ListBooks(search), nil
}

// CountBooks returns the catalog size, or 0 when it cannot be read.
func (cm *CatalogManager) CountBooks() int {
	n, err := cm.db.CountBooks()
	if err != nil {
		logrus.WithError(err).Error("failed to count books")
		return 0
	}
	return n
}

// BookByArticle returns the book or nil when it is missing or cannot be read.
func (cm *CatalogManager) BookByArticle(article string) *Book {
	b, err := cm.db.GetBookByArticle(article)
	switch {
	case errors.Is(err, ErrBookNotFound):
		return nil
	case err != nil:
		logrus.WithError(err).WithField("article", article).Error("failed to load book")
		return nil
	}
	return b
}

// ------------------ Seeding ------------------

// ImportSeed loads users and books into the database in one transaction.
func (cm *CatalogManager) ImportSeed(seed *Seed) (users, books int, err error) {
	return cm.db.ImportSeed(seed)
}

// ImportSeedFile reads path and imports it.
func (cm *CatalogManager) ImportSeedFile(path string) (users, books int, err error) {
	seed, err := LoadSeed(path)
	if err != nil {
		return 0, 0, err
	}
	return cm.ImportSeed(seed)
}

// ------------------ Utilities ------------------

// FormatPrice renders an amount in roubles.
func FormatPrice(v float64) string { return fmt.Sprintf("%.2f rub.", v) }

// PrettyBook formats a book for lists.
func PrettyBook(b *Book) string {
	price := FormatPrice(b.Price)
	if b.Discounted() {
		price = fmt.Sprintf("%s (was %s)", FormatPrice(b.EffectivePrice()), FormatPrice(b.Price))
	}
	stock := fmt.Sprintf("%d pcs.", b.StockQuantity)
	if !b.InStock() {
		stock = "OUT OF STOCK"
	}
	return fmt.Sprintf("%-8s %-30s %-22s %-14s %-28s %s",
		b.Article, Truncate(b.Title, 30), Truncate(b.Author, 22), Truncate(b.Genre, 14), price, stock)
}

// Truncate shortens s to maxLen runes, ending with "..." when cut.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
