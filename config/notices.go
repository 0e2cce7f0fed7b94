package config

import "time"

// NoticesConfig controls the public notice board.
type NoticesConfig struct {
	// CacheTTL is how long the published board is served from memory.
	CacheTTL time.Duration `env:"NOTICES_CACHE_TTL"  envDefault:"30s"`
	PageSize int           `env:"NOTICES_PAGE_SIZE"  envDefault:"10"`
}

// Sanitize keeps the page size within 1..100.
func (n *NoticesConfig) Sanitize() {
	if n.CacheTTL <= 0 {
		n.CacheTTL = 30 * time.Second
	}
	switch {
	case n.PageSize <= 0:
		n.PageSize = 10
	case n.PageSize > 100:
		n.PageSize = 100
	}
}
