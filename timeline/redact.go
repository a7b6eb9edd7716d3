package timeline

import (
	"go.mau.fi/csync/event"
	"go.mau.fi/csync/id"
)

// ApplyRedaction rewrites a redacted event in place: if redacts names an event known to
// idx, that event's node is rewritten in place so its content is gone and
// its unsigned.redacted_because points at redaction. The node's identity
// and position in whatever timeline owns it are preserved. If redacts is
// not known, this is a no-op — the redacted event simply isn't loaded.
func ApplyRedaction(idx *Index, redacts id.EventID, redaction *event.ClientEvent) {
	n, ok := idx.lookup(redacts)
	if !ok || n.event == nil {
		return
	}
	n.event.Event.Content = nil
	n.event.Event.Unsigned.RedactedBecause = redaction
}
