package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ToolState tracks one tool call's lifecycle in the outward message.
type ToolState int

const (
	ToolRunning ToolState = iota
	ToolDone
	ToolFailed
)

// ToolStatus is one append-only status entry owned by the turn. The loop
// mutates State as the call progresses; rendering happens at flush time, so
// status transitions never depend on matching previously rendered text.
type ToolStatus struct {
	Name  string
	Args  map[string]any
	State ToolState
}

// toolLabel holds the human-readable templates for one tool's status line.
// Templates support {arg} placeholders filled from the call arguments.
type toolLabel struct {
	emoji   string
	running string
	done    string
}

var toolLabels = map[string]toolLabel{
	"get_quran_verse":      {"📖", "Getting ayah {surah}:{ayah}", "Got ayah {surah}:{ayah}"},
	"get_quran_page":       {"📖", "Getting Quran page {page}", "Got Quran page {page}"},
	"search_quran":         {"📖", "Searching Quran for **{keyword}**", "Searched Quran for **{keyword}**"},
	"get_my_stats":         {"📊", "Fetching your stats", "Fetched your stats"},
	"mark_wird_complete":   {"📝", "Marking wird complete", "Marked wird complete"},
	"set_my_streak_emoji":  {"✏️", "Setting streak emoji to {emoji}", "Set streak emoji to {emoji}"},
	"remember_info":        {"🧠", "Saving to memory", "Saved to memory"},
	"get_my_memories":      {"🧠", "Recalling memories", "Recalled memories"},
	"forget_memory":        {"🧠", "Deleting memory", "Deleted memory"},
	"clear_context":        {"🧹", "Clearing context", "Cleared context"},
	"update_server_config": {"✏️", "Updating `{setting}` → `{value}`", "Updated `{setting}` → `{value}`"},
	"set_bot_presence":     {"✏️", "Setting bot status to **{status_text}**", "Set bot status to **{status_text}**"},
	"execute_discord_code": {"⚙️", "Preparing code execution", "Code execution prepared"},
}

var labelArgPattern = regexp.MustCompile(`\{(\w+)\}`)

// labelArgMax caps substituted argument values so one long keyword cannot
// blow up a status line.
const labelArgMax = 60

func labelArg(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		s = fmt.Sprint(t)
	}
	if len(s) > labelArgMax {
		return s[:labelArgMax] + "..."
	}
	return s
}

// formatToolLabel builds the label text for a tool call, without emoji
// prefix or leading newline. Tools without a table entry get a generic
// label built from the wire name.
func formatToolLabel(name string, args map[string]any, done bool) string {
	entry, ok := toolLabels[name]
	if !ok {
		if done {
			return fmt.Sprintf("Called `%s`", name)
		}
		return fmt.Sprintf("Calling `%s`", name)
	}
	template := entry.running
	if done {
		template = entry.done
	}
	return labelArgPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := args[key]; ok {
			return labelArg(v)
		}
		return ""
	})
}

// statusLine renders one status entry as a "-#" subtext line.
func statusLine(s *ToolStatus) string {
	entry, hasEntry := toolLabels[s.Name]
	emoji := "🛠️"
	if hasEntry {
		emoji = entry.emoji
	}
	switch s.State {
	case ToolDone:
		return "-# ✅ " + formatToolLabel(s.Name, s.Args, true)
	case ToolFailed:
		return "-# ❌ Error: " + formatToolLabel(s.Name, s.Args, true)
	default:
		return fmt.Sprintf("-# %s %s...", emoji, formatToolLabel(s.Name, s.Args, false))
	}
}

// renderStatuses renders all status entries, collapsing consecutive runs of
// the exact same completed line into one line with a ×N suffix.
func renderStatuses(statuses []*ToolStatus) string {
	var lines []string
	i := 0
	for i < len(statuses) {
		line := statusLine(statuses[i])
		count := 1
		if statuses[i].State != ToolRunning {
			for i+count < len(statuses) && statusLine(statuses[i+count]) == line {
				count++
			}
		}
		if count > 1 {
			line += fmt.Sprintf(" ×%d", count)
		}
		lines = append(lines, line)
		i += count
	}
	return strings.Join(lines, "\n")
}
