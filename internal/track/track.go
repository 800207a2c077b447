package track

import "fmt"

// Track is a fully resolved, playable unit. Once a provider returns it, none
// of the fields change.
type Track struct {
	Title       string
	Duration    int    // seconds
	StreamURL   string // what the voice transport opens
	SourceURL   string // canonical link shown to users, also the dedup key
	Thumbnail   string
	RequestedBy string
}

// FormatDuration renders a duration in seconds as m:ss.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
