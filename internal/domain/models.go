package domain

import (
	"errors"
	"time"
)

// ItemType distinguishes catalog entries.
type ItemType string

const (
	TypeGame     ItemType = "game"
	TypeSoftware ItemType = "software"
)

// Placeholder defaults used before detail enrichment fills real values.
const (
	DefaultVersion  = "Latest"
	DefaultFileSize = "Unknown"
)

// ErrDuplicate is returned by the catalog when an item with the same name
// already exists.
var ErrDuplicate = errors.New("duplicate item")

// DownloadLink is a single outbound link on a catalog item.
type DownloadLink struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Item is the unit committed to the catalog.
type Item struct {
	ID             int64          `json:"id,omitempty"`
	Name           string         `json:"name"`
	Type           ItemType       `json:"type"`
	Version        string         `json:"version"`
	Category       string         `json:"category"`
	FileSize       string         `json:"file_size"`
	Description    string         `json:"description"`
	DownloadLinks  []DownloadLink `json:"download_links"`
	SourceURL      string         `json:"source_url"`
	OS             []string       `json:"os"`
	DownloadsCount int            `json:"downloads_count"`
	AverageRating  float64        `json:"average_rating"`
	ReviewsCount   int            `json:"reviews_count"`
	DateAdded      time.Time      `json:"date_added"`
	AddedBy        int64          `json:"added_by"`
	Scraped        bool           `json:"scraped"`
	IsGame         bool           `json:"is_game"`
}

// Candidate is a minimally-extracted listing-page item pending enrichment.
type Candidate struct {
	Title     string
	DetailURL string
}

// RawRecord holds a fetched detail page destined for AI extraction.
// It lives only for the duration of one ingestion run.
type RawRecord struct {
	Title string
	URL   string
	HTML  string
}

// Details are the fields a detail-page visit can contribute to an item.
type Details struct {
	DownloadLinks []string
	Description   string
	FileSize      string
	Version       string
}

// Report summarises one ingestion run for the calling layer.
type Report struct {
	AddedGames    int    `json:"added_games"`
	AddedSoftware int    `json:"added_software"`
	Duplicates    int    `json:"duplicates"`
	Errors        int    `json:"errors"`
	PagesScraped  int    `json:"pages_scraped"`
	TotalItems    int    `json:"total_items"`
	FatalError    string `json:"fatal_error,omitempty"`
}

// ScrapeRequest is the payload for the scrape API.
type ScrapeRequest struct {
	URL      string `json:"url"`
	Pages    int    `json:"pages"`
	Mode     string `json:"mode"` // "ai", "quick", "full"
	Category string `json:"category,omitempty"`
	Force    bool   `json:"force,omitempty"` // rerun a recently scraped source
}
