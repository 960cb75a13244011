package fetcher

import (
	"embed"
	"io/fs"
)

//go:embed fixtures/*.html
var embedded embed.FS

// DefaultFixtures holds the bundled embassy and USCIS pages.
func DefaultFixtures() fs.FS {
	sub, err := fs.Sub(embedded, "fixtures")
	if err != nil {
		panic(err)
	}

	return sub
}
