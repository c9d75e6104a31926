package catalog

import "strings"

// Role is the access level stored with each user.
type Role string

const (
	RoleGuest         Role = "Guest"
	RoleClient        Role = "Client"
	RoleManager       Role = "Manager"
	RoleAdministrator Role = "Administrator"
)

// roleAliases accepts the role names the club's first database was filled with.
var roleAliases = map[string]Role{
	"guest":         RoleGuest,
	"гость":         RoleGuest,
	"client":        RoleClient,
	"клиент":        RoleClient,
	"manager":       RoleManager,
	"менеджер":      RoleManager,
	"administrator": RoleAdministrator,
	"admin":         RoleAdministrator,
	"администратор": RoleAdministrator,
}

// ParseRole maps a stored or user-supplied role name onto a Role.
func ParseRole(s string) (Role, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	return r, ok
}

// User is an authenticated club member.
type User struct {
	ID           int64  `json:"id"`
	Login        string `json:"login"`
	PasswordHash string `json:"-"` // Don't serialize password hash
	Role         Role   `json:"role"`
	FullName     string `json:"full_name"`
}

// IsGuest reports whether the user entered without credentials.
func (u *User) IsGuest() bool { return u == nil || u.Role == RoleGuest }

// Book is one catalog entry. Article is the stable key shared with the cover mapping.
type Book struct {
	Article       string   `json:"article"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	Genre         string   `json:"genre"`
	Publisher     string   `json:"publisher"`
	Year          int      `json:"year"`
	Price         float64  `json:"price"`
	OnSale        bool     `json:"on_sale"`
	SalePrice     *float64 `json:"sale_price"`
	StockQuantity int      `json:"stock_quantity"`
}

// InStock reports whether at least one copy is available.
func (b *Book) InStock() bool { return b.StockQuantity > 0 }

// EffectivePrice is the price a buyer pays right now. A sale without a
// (non-zero) sale price falls back to the regular price.
func (b *Book) EffectivePrice() float64 {
	if b.OnSale && b.SalePrice != nil && *b.SalePrice != 0 {
		return *b.SalePrice
	}
	return b.Price
}

// Discounted reports whether EffectivePrice differs from the list price.
func (b *Book) Discounted() bool { return b.EffectivePrice() != b.Price }

// NormalizeArticle is the canonical form of an article code: trimmed and upper-case.
func NormalizeArticle(article string) string {
	return strings.ToUpper(strings.TrimSpace(article))
}
