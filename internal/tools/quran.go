package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wirdbot/wirdbot/internal/quran"
)

// maxSurah is the number of surahs in the mushaf.
const maxSurah = 114

// VerseTool fetches a single ayah from alquran.cloud.
type VerseTool struct {
	client *quran.Client
}

// NewVerseTool creates the get_quran_verse tool.
func NewVerseTool(client *quran.Client) *VerseTool {
	return &VerseTool{client: client}
}

func (t *VerseTool) Name() string { return "get_quran_verse" }

func (t *VerseTool) Description() string {
	return "Get the text of a single Quran verse (ayah). Use when the user asks for a specific verse by surah and ayah number."
}

func (t *VerseTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"surah": map[string]any{
				"type":        "integer",
				"description": "Surah number (1-114)",
			},
			"ayah": map[string]any{
				"type":        "integer",
				"description": "Ayah number within the surah",
			},
			"edition": map[string]any{
				"type":        "string",
				"description": "Edition or translation identifier (default 'quran-uthmani')",
			},
		},
		"required": []string{"surah", "ayah"},
	}
}

func (t *VerseTool) Requirement() Requirement   { return Public }
func (t *VerseTool) RequiresConfirmation() bool { return false }

func (t *VerseTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	var args struct {
		Surah   int    `json:"surah"`
		Ayah    int    `json:"ayah"`
		Edition string `json:"edition"`
	}
	if err := DecodeParams(params, &args); err != nil {
		return "Invalid Surah or Ayah number.", nil
	}
	if args.Surah < 1 || args.Surah > maxSurah || args.Ayah < 1 {
		return "Invalid Surah or Ayah number.", nil
	}

	text, err := t.client.Ayah(ctx, args.Surah, args.Ayah, args.Edition)
	if err != nil {
		return fmt.Sprintf("Error fetching ayah %d:%d: %v", args.Surah, args.Ayah, err), nil
	}
	return text, nil
}

// PageTool fetches a full mushaf page.
type PageTool struct {
	client *quran.Client
}

// NewPageTool creates the get_quran_page tool.
func NewPageTool(client *quran.Client) *PageTool {
	return &PageTool{client: client}
}

func (t *PageTool) Name() string { return "get_quran_page" }

func (t *PageTool) Description() string {
	return "Get the full text of a Quran page (1-604). Use when the user asks what is on a given page of the mushaf."
}

func (t *PageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"page": map[string]any{
				"type":        "integer",
				"description": "Page number (1-604)",
			},
			"edition": map[string]any{
				"type":        "string",
				"description": "Edition or translation identifier (default 'quran-uthmani')",
			},
		},
		"required": []string{"page"},
	}
}

func (t *PageTool) Requirement() Requirement   { return Public }
func (t *PageTool) RequiresConfirmation() bool { return false }

func (t *PageTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	var args struct {
		Page    int    `json:"page"`
		Edition string `json:"edition"`
	}
	if err := DecodeParams(params, &args); err != nil {
		return "Invalid page number.", nil
	}
	if args.Page < 1 || args.Page > quran.MaxPage {
		return "Invalid page number.", nil
	}

	text, err := t.client.Page(ctx, args.Page, args.Edition)
	if err != nil {
		return fmt.Sprintf("Error fetching page %d: %v", args.Page, err), nil
	}
	return text, nil
}

// SearchTool searches the Quran text.
type SearchTool struct {
	client *quran.Client
}

// NewSearchTool creates the search_quran tool.
func NewSearchTool(client *quran.Client) *SearchTool {
	return &SearchTool{client: client}
}

func (t *SearchTool) Name() string { return "search_quran" }

func (t *SearchTool) Description() string {
	return "Search the Quran for a keyword. Returns matching verses with references. Searches English translations unless an edition is given."
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keyword": map[string]any{
				"type":        "string",
				"description": "The word or phrase to search for",
			},
			"surah": map[string]any{
				"type":        "string",
				"description": "Surah number to restrict the search, or 'all' (default)",
			},
			"edition": map[string]any{
				"type":        "string",
				"description": "Specific edition to search",
			},
			"language": map[string]any{
				"type":        "string",
				"description": "Language code to search across (default 'en')",
			},
		},
		"required": []string{"keyword"},
	}
}

func (t *SearchTool) Requirement() Requirement   { return Public }
func (t *SearchTool) RequiresConfirmation() bool { return false }

func (t *SearchTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	keyword := strings.TrimSpace(GetString(params, "keyword", ""))
	if keyword == "" {
		return "Error: keyword is required", nil
	}

	// Models pass surah as a number or a string; normalize to the API form.
	surah := "all"
	switch v := params["surah"].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" && !strings.EqualFold(s, "all") {
			surah = s
		}
	case float64:
		surah = strconv.Itoa(int(v))
	case int:
		surah = strconv.Itoa(v)
	}

	target := GetString(params, "edition", "")
	if target == "" {
		target = GetString(params, "language", "")
	}

	result, err := t.client.Search(ctx, keyword, surah, target)
	if err != nil {
		return fmt.Sprintf("Error searching for '%s': %v", keyword, err), nil
	}
	return result, nil
}
