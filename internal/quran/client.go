// Package quran is a client for the alquran.cloud content API.
package quran

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.alquran.cloud/v1"
	// DefaultEdition is the canonical Arabic text edition.
	DefaultEdition = "quran-uthmani"
	// MaxPage is the last page of the standard mushaf.
	MaxPage = 604
)

// Client talks to the alquran.cloud REST API.
type Client struct {
	apiBase    string
	edition    string
	httpClient *http.Client
}

// NewClient creates a content API client. Empty arguments select the public
// API endpoint and the uthmani text edition.
func NewClient(apiBase, edition string) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	if edition == "" {
		edition = DefaultEdition
	}
	return &Client{
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		edition:    edition,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// API response envelope. Data is polymorphic: an object on success, a bare
// string carrying the error message otherwise.
type apiResponse struct {
	Code   int             `json:"code"`
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type ayahData struct {
	Text          string    `json:"text"`
	NumberInSurah int       `json:"numberInSurah"`
	Surah         surahData `json:"surah"`
}

type surahData struct {
	Number      int    `json:"number"`
	Name        string `json:"name"`
	EnglishName string `json:"englishName"`
}

type pageData struct {
	Number int        `json:"number"`
	Ayahs  []ayahData `json:"ayahs"`
}

type searchData struct {
	Count   int           `json:"count"`
	Matches []searchMatch `json:"matches"`
}

type searchMatch struct {
	Text          string    `json:"text"`
	NumberInSurah int       `json:"numberInSurah"`
	Surah         surahData `json:"surah"`
	Edition       struct {
		Name string `json:"name"`
	} `json:"edition"`
}

// Ayah fetches a single verse's text.
func (c *Client) Ayah(ctx context.Context, surah, ayah int, edition string) (string, error) {
	if edition == "" {
		edition = c.edition
	}
	url := fmt.Sprintf("%s/ayah/%d:%d/%s", c.apiBase, surah, ayah, edition)

	raw, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	var data ayahData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("parse ayah response: %w", err)
	}
	return data.Text, nil
}

// Page fetches a full mushaf page as "[surah:ayah] text" lines.
func (c *Client) Page(ctx context.Context, page int, edition string) (string, error) {
	if page < 1 || page > MaxPage {
		return "", fmt.Errorf("page %d out of range 1-%d", page, MaxPage)
	}
	if edition == "" {
		edition = c.edition
	}
	url := fmt.Sprintf("%s/page/%d/%s", c.apiBase, page, edition)

	raw, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	var data pageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("parse page response: %w", err)
	}

	lines := make([]string, 0, len(data.Ayahs))
	for _, a := range data.Ayahs {
		lines = append(lines, fmt.Sprintf("[%d:%d] %s", a.Surah.Number, a.NumberInSurah, a.Text))
	}
	return strings.Join(lines, "\n"), nil
}

// PageSurahs returns the distinct surah names appearing on a page, in order.
func (c *Client) PageSurahs(ctx context.Context, page int) ([]string, error) {
	if page < 1 || page > MaxPage {
		return nil, fmt.Errorf("page %d out of range 1-%d", page, MaxPage)
	}
	url := fmt.Sprintf("%s/page/%d/%s", c.apiBase, page, c.edition)

	raw, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var data pageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse page response: %w", err)
	}

	var names []string
	seen := make(map[int]bool)
	for _, a := range data.Ayahs {
		if !seen[a.Surah.Number] {
			seen[a.Surah.Number] = true
			names = append(names, a.Surah.EnglishName)
		}
	}
	return names, nil
}

// Search runs a keyword search. surah is a surah number or "all"; target is
// an edition identifier or a language code ("en" searches all English texts).
// The top ten matches come back formatted for chat.
func (c *Client) Search(ctx context.Context, keyword, surah, target string) (string, error) {
	if surah == "" {
		surah = "all"
	}
	if target == "" {
		target = "en"
	}
	url := fmt.Sprintf("%s/search/%s/%s/%s", c.apiBase, keyword, surah, target)

	raw, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}

	var data searchData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("parse search response: %w", err)
	}

	if len(data.Matches) == 0 {
		return "No matches found.", nil
	}

	matches := data.Matches
	if len(matches) > 10 {
		matches = matches[:10]
	}
	formatted := make([]string, 0, len(matches))
	for _, m := range matches {
		formatted = append(formatted, fmt.Sprintf("**[%d:%d]** %s (%s)",
			m.Surah.Number, m.NumberInSurah, m.Text, m.Edition.Name))
	}

	out := fmt.Sprintf("Found %d matches (Showing top 10):\n\n%s",
		data.Count, strings.Join(formatted, "\n\n"))
	if data.Count > 10 {
		out += fmt.Sprintf("\n\n... and %d more.", data.Count-10)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("quran API error (status %d): %s", resp.StatusCode, string(body))
	}

	if envelope.Status != "OK" {
		// On failure the data field carries the message as a bare string.
		var msg string
		if err := json.Unmarshal(envelope.Data, &msg); err != nil {
			msg = string(envelope.Data)
		}
		return nil, fmt.Errorf("quran API error (code %d): %s", envelope.Code, msg)
	}

	return envelope.Data, nil
}
