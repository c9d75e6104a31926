package catalog

import (
	"fmt"

	"github.com/spf13/viper"
)

// Seed is the initial content of a fresh catalog database.
type Seed struct {
	Users []SeedUser `mapstructure:"users"`
	Books []SeedBook `mapstructure:"books"`
}

// SeedUser carries a plaintext password; it is hashed on import.
type SeedUser struct {
	Login    string `mapstructure:"login"`
	Password string `mapstructure:"password"`
	Role     string `mapstructure:"role"`
	FullName string `mapstructure:"full_name"`
}

type SeedBook struct {
	Article       string   `mapstructure:"article"`
	Title         string   `mapstructure:"title"`
	Author        string   `mapstructure:"author"`
	Genre         string   `mapstructure:"genre"`
	Publisher     string   `mapstructure:"publisher"`
	Year          int      `mapstructure:"year"`
	Price         float64  `mapstructure:"price"`
	OnSale        bool     `mapstructure:"on_sale"`
	SalePrice     *float64 `mapstructure:"sale_price"`
	StockQuantity int      `mapstructure:"stock_quantity"`
}

// Book converts the seed row into a catalog entry.
func (sb SeedBook) Book() Book {
	return Book{
		Article:       sb.Article,
		Title:         sb.Title,
		Author:        sb.Author,
		Genre:         sb.Genre,
		Publisher:     sb.Publisher,
		Year:          sb.Year,
		Price:         sb.Price,
		OnSale:        sb.OnSale,
		SalePrice:     sb.SalePrice,
		StockQuantity: sb.StockQuantity,
	}
}

// LoadSeed reads a seed file. The format follows the extension (toml, yaml, json).
func LoadSeed(path string) (*Seed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed Seed
	if err := v.Unmarshal(&seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	for i, b := range seed.Books {
		if b.StockQuantity < 0 {
			return nil, fmt.Errorf("seed book %d (%s): negative stock", i, b.Article)
		}
	}
	return &seed, nil
}
