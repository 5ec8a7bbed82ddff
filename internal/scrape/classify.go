package scrape

import (
	"net/url"
	"strings"

	"catalogbot/internal/domain"
)

// Classification carries the type/category context a caller resolved for a
// listing page. It is passed down to every strategy so listing and later
// re-categorisation passes agree.
type Classification struct {
	Type     domain.ItemType
	Category string
}

// Domains known to host games. A source URL containing one of these marks
// items as games unless a software keyword overrides it.
var gameSiteDomains = []string{
	"apunkagames", "pcgamestorrents", "fitgirl-repacks", "oceanofgames",
	"skidrowreloaded", "igg-games", "steamunlocked", "skidrowcodex",
	"codexgames", "cpygames", "repack-games", "gog-games", "crohasit",
	"downloadpcgames", "pcgamesn", "crackwatch", "dodi-repacks",
}

// Keywords in a category or title that indicate software regardless of the
// hosting domain. Keyword match has priority over domain inference.
var softwareKeywords = []string{
	"booster", "launcher", "crack", "antivirus", "firewall", "vpn",
	"ide", "compiler", "editor", "driver", "activator", "keygen",
	"office", "browser", "utilit", "convert", "recovery", "cleaner",
}

var categoryPatterns = []struct {
	category string
	patterns []string
}{
	{"Action", []string{"action-games", "action/", "/action", "aksiyon"}},
	{"Adventure", []string{"adventure-games", "adventure/", "/adventure", "macera"}},
	{"Racing", []string{"racing-games", "racing/", "/racing", "yaris"}},
	{"Sports", []string{"sports-games", "sports/", "/sports", "spor"}},
	{"Strategy", []string{"strategy-games", "strategy/", "/strategy", "strateji"}},
	{"RPG", []string{"rpg-games", "rpg/", "/rpg", "role-playing"}},
	{"Shooter", []string{"shooter-games", "shooter/", "/shooter", "fps"}},
	{"Simulation", []string{"simulation-games", "simulation/", "/simulation"}},
	{"Horror", []string{"horror-games", "horror/", "/horror", "korku"}},
	{"Puzzle", []string{"puzzle-games", "puzzle/", "/puzzle", "bulmaca"}},
	{"3D Tools", []string{"3d-tools", "3dtools", "modeling"}},
	{"Activator", []string{"activator", "activation", "keygen"}},
	{"Audio", []string{"audio", "sound", "music", "daw"}},
	{"Browser", []string{"web-browser", "browser"}},
	{"Graphics", []string{"graphics", "design", "photo", "image"}},
	{"Multimedia", []string{"multimedia", "media"}},
	{"Office", []string{"office", "productivity", "word", "excel"}},
	{"Security", []string{"security", "antivirus", "firewall", "vpn"}},
	{"Utilities", []string{"utilities", "tools", "system"}},
	{"Video", []string{"video-editor", "video/", "editing"}},
}

// IsGameSite reports whether the URL belongs to a known game-hosting domain.
func IsGameSite(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, site := range gameSiteDomains {
		if strings.Contains(lower, site) {
			return true
		}
	}
	return false
}

// Classify derives the item type from the source domain and any software
// keywords found in the category or title. Software keywords win over the
// domain-based game inference.
func Classify(sourceURL, category, title string) domain.ItemType {
	haystack := strings.ToLower(category + " " + title)
	for _, kw := range softwareKeywords {
		if strings.Contains(haystack, kw) {
			return domain.TypeSoftware
		}
	}
	if IsGameSite(sourceURL) {
		return domain.TypeGame
	}
	return domain.TypeSoftware
}

// CategoryFromURL auto-detects a category from URL path patterns, falling
// back to a cleaned-up trailing path segment. The host never becomes a
// category.
func CategoryFromURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	for _, entry := range categoryPatterns {
		for _, p := range entry.patterns {
			if strings.Contains(lower, p) {
				return entry.category
			}
		}
	}

	path := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		path = parsed.Path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		clean := strings.ReplaceAll(strings.ReplaceAll(parts[i], "-", " "), "_", " ")
		clean = strings.TrimSpace(clean)
		if len(clean) > 3 && len(clean) < 30 && !isDigits(clean) {
			return titleCase(clean)
		}
	}
	return ""
}

// ResolveClassification combines an optional caller-supplied category with
// URL-derived inference. Custom category wins, then auto-detection, then the
// defaults. Game categories are normalised to contain "Games" so the catalog
// filters stay consistent.
func ResolveClassification(baseURL, customCategory string) Classification {
	itemType := Classify(baseURL, customCategory, "")

	category := customCategory
	if category == "" {
		category = CategoryFromURL(baseURL)
	}
	if category == "" {
		if itemType == domain.TypeGame {
			category = "Games"
		} else {
			category = "Uncategorized"
		}
	}
	if itemType == domain.TypeGame && !strings.Contains(strings.ToLower(category), "game") {
		category += " Games"
	}

	return Classification{Type: itemType, Category: category}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
