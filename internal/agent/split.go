package agent

import "strings"

const (
	// messageCeiling is Discord's hard per-message character limit.
	messageCeiling = 2000
	// splitLimit is where long text is split so status lines and markers
	// still fit beneath the chunk.
	splitLimit = 1900
	// splitLookback is how far back from the limit a newline is preferred
	// over a mid-line hard split.
	splitLookback = 500
)

// SplitText splits text into chunks of at most limit characters, preferring
// the last newline within the final splitLookback characters of each chunk
// so lines are not broken mid-sentence. Without a nearby newline it hard
// splits at the limit.
func SplitText(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		sliceStart := limit - splitLookback
		if sliceStart < 0 {
			sliceStart = 0
		}
		cut := strings.LastIndex(text[sliceStart:limit], "\n")
		if cut >= 0 {
			cut += sliceStart
			chunks = append(chunks, text[:cut])
			text = text[cut+1:]
		} else {
			chunks = append(chunks, text[:limit])
			text = text[limit:]
		}
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// StripSubtext removes "-#" subtext lines from model output. The model
// sometimes hallucinates tool status lines after seeing them in history;
// only the loop may write status lines.
func StripSubtext(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "-#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
