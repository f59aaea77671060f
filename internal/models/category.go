package models

import "strings"

// Category is a named, colour-tagged tag applied to events for grouping
// and filtering. Names are unique case-insensitively; colours are unique
// across the whole set.
type Category struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DefaultPalette is the built-in colour token set. The engine treats the
// palette as externally supplied; this is only the fallback instance.
var DefaultPalette = []string{
	"blue", "green", "red", "yellow", "purple", "pink",
	"indigo", "teal", "orange", "cyan", "lime", "amber",
}

// DefaultCategories seeds a fresh install.
var DefaultCategories = []Category{
	{Name: "lavoro", Color: "blue"},
	{Name: "personale", Color: "green"},
	{Name: "studio", Color: "purple"},
}

// CategoriesToMap converts the ordered definition list into the
// name-to-colour mapping used on the wire.
func CategoriesToMap(cats []Category) map[string]string {
	out := make(map[string]string, len(cats))
	for _, c := range cats {
		out[c.Name] = c.Color
	}
	return out
}

// FindByName looks a category up by case-insensitive name.
func FindByName(cats []Category, name string) (Category, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range cats {
		if strings.ToLower(c.Name) == want {
			return c, true
		}
	}
	return Category{}, false
}

// HasColor reports whether any category carries the given colour token.
func HasColor(cats []Category, color string) bool {
	for _, c := range cats {
		if c.Color == color {
			return true
		}
	}
	return false
}

// FallbackColor picks the designated repair colour: the first category's
// colour, or the first palette entry when the category set is empty.
func FallbackColor(cats []Category, palette []string) string {
	if len(cats) > 0 {
		return cats[0].Color
	}
	if len(palette) > 0 {
		return palette[0]
	}
	return DefaultPalette[0]
}
