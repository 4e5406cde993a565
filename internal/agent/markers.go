package agent

import "sync"

// Markers tracks the per-channel context pruning marker: the message ID set
// by clear_context. History entries at or before the marker never re-enter
// a built context.
type Markers struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMarkers creates an empty marker map.
func NewMarkers() *Markers {
	return &Markers{m: make(map[string]string)}
}

// SetMarker records messageID as the pruning cutoff for a channel.
func (k *Markers) SetMarker(channelID, messageID string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[channelID] = messageID
}

// Marker returns the pruning cutoff for a channel, if one is set.
func (k *Markers) Marker(channelID string) (string, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	id, ok := k.m[channelID]
	return id, ok
}
