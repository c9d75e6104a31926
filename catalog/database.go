package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// driverName is go-sqlite3 with a Unicode-aware fold() function registered on
// every connection. SQLite's LOWER only folds ASCII, which breaks search over
// Cyrillic titles.
const driverName = "sqlite3_catalog"

var registerDriver sync.Once

func registerCatalogDriver() {
	registerDriver.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("fold", strings.ToLower, true)
			},
		})
	})
}

var (
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrBookNotFound       = errors.New("book not found")
	ErrDuplicateArticle   = errors.New("article already exists")
	ErrDuplicateLogin     = errors.New("login already exists")
)

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db *sql.DB

	userByLoginStmt *sql.Stmt
	bookByArticle   *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies schema
// migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	registerCatalogDriver()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every call gets its own connection and closes it on release.
	db.SetMaxIdleConns(0)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.userByLoginStmt != nil {
		d.userByLoginStmt.Close()
	}
	if d.bookByArticle != nil {
		d.bookByArticle.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            user_id INTEGER PRIMARY KEY AUTOINCREMENT,
            login TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL,
            full_name TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS books (
            article TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            genre TEXT NOT NULL DEFAULT '',
            publisher TEXT NOT NULL DEFAULT '',
            year INTEGER NOT NULL DEFAULT 0,
            price REAL NOT NULL,
            on_sale BOOLEAN NOT NULL DEFAULT 0,
            sale_price REAL,
            stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_books_title ON books(title);`,
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, schemaVersion); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

const bookColumns = `article,title,author,genre,publisher,year,price,on_sale,sale_price,stock_quantity`

func (d *Database) prepareStatements() error {
	var err error
	if d.userByLoginStmt, err = d.db.Prepare(`SELECT user_id,login,password_hash,role,full_name FROM users WHERE login=?`); err != nil {
		return err
	}
	if d.bookByArticle, err = d.db.Prepare(`SELECT ` + bookColumns + ` FROM books WHERE article=?`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// HashPassword returns the bcrypt hash stored in users.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// AddUser hashes password and stores a new user.
func (d *Database) AddUser(login, password string, role Role, fullName string) (int64, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	return insertUser(d.db, login, hash, role, fullName)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertUser(ex execer, login, hash string, role Role, fullName string) (int64, error) {
	if strings.TrimSpace(login) == "" {
		return 0, fmt.Errorf("login cannot be empty")
	}
	res, err := ex.Exec(`INSERT INTO users(login,password_hash,role,full_name) VALUES(?,?,?,?)`,
		login, hash, string(role), fullName)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateLogin, login)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return res.LastInsertId()
}

// AuthenticateUser matches login exactly (case-sensitive) and verifies the
// password against the stored bcrypt hash.
func (d *Database) AuthenticateUser(login, password string) (*User, error) {
	var (
		u    User
		role string
	)
	err := d.userByLoginStmt.QueryRow(login).Scan(&u.ID, &u.Login, &u.PasswordHash, &role, &u.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		// Burn a comparable amount of time so unknown logins are not cheaper.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if r, ok := ParseRole(role); ok {
		u.Role = r
	} else {
		u.Role = Role(role)
	}
	return &u, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("catalog-dummy"), bcrypt.DefaultCost)

// ResetPassword replaces the stored hash for login.
func (d *Database) ResetPassword(login, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	res, err := d.db.Exec(`UPDATE users SET password_hash=? WHERE login=?`, hash, login)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no user with login %q", login)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Books
// ---------------------------------------------------------------------------

// AddBook inserts a catalog entry.
func (d *Database) AddBook(b *Book) error {
	return insertBook(d.db, b)
}

func insertBook(ex execer, b *Book) error {
	b.Article = NormalizeArticle(b.Article)
	if b.Article == "" {
		return fmt.Errorf("article cannot be empty")
	}
	var sale sql.NullFloat64
	if b.SalePrice != nil {
		sale = sql.NullFloat64{Float64: *b.SalePrice, Valid: true}
	}
	_, err := ex.Exec(`INSERT INTO books(`+bookColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		b.Article, b.Title, b.Author, b.Genre, b.Publisher, b.Year, b.Price, b.OnSale, sale, b.StockQuantity)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateArticle, b.Article)
		}
		return fmt.Errorf("insert book %s: %w", b.Article, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	var (
		b    Book
		sale sql.NullFloat64
	)
	if err := row.Scan(&b.Article, &b.Title, &b.Author, &b.Genre, &b.Publisher, &b.Year,
		&b.Price, &b.OnSale, &sale, &b.StockQuantity); err != nil {
		return nil, err
	}
	if sale.Valid {
		v := sale.Float64
		b.SalePrice = &v
	}
	return &b, nil
}

// GetBookByArticle fetches a single book. The article is matched
// case-insensitively.
func (d *Database) GetBookByArticle(article string) (*Book, error) {
	article = NormalizeArticle(article)
	b, err := scanBook(d.bookByArticle.QueryRow(article))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBookNotFound, article)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBooks returns all books ordered by title, or, for a non-blank search,
// the books whose title, author or genre contains it case-insensitively.
func (d *Database) ListBooks(search string) ([]*Book, error) {
	search = strings.TrimSpace(search)

	var (
		rows *sql.Rows
		err  error
	)
	if search == "" {
		rows, err = d.db.Query(`SELECT ` + bookColumns + ` FROM books ORDER BY title`)
	} else {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		rows, err = d.db.Query(`
        SELECT `+bookColumns+`
        FROM books
        WHERE fold(title) LIKE ? ESCAPE '\'
           OR fold(author) LIKE ? ESCAPE '\'
           OR fold(genre) LIKE ? ESCAPE '\'
        ORDER BY title;`, pattern, pattern, pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks returns the number of catalog entries.
func (d *Database) CountBooks() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM books`).Scan(&n)
	return n, err
}

// ImportSeed inserts every user and book of seed in one transaction.
func (d *Database) ImportSeed(seed *Seed) (users, books int, err error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	for _, su := range seed.Users {
		role, ok := ParseRole(su.Role)
		if !ok {
			return 0, 0, fmt.Errorf("user %s: unknown role %q", su.Login, su.Role)
		}
		hash, err := HashPassword(su.Password)
		if err != nil {
			return 0, 0, err
		}
		if _, err := insertUser(tx, su.Login, hash, role, su.FullName); err != nil {
			return 0, 0, err
		}
		users++
	}
	for _, sb := range seed.Books {
		b := sb.Book()
		if err := insertBook(tx, &b); err != nil {
			return 0, 0, err
		}
		books++
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return users, books, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
