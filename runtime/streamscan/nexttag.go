package streamscan

import (
	"regexp"
	"strings"
)

// Tag describes the next recognized tag found in a buffer by NextTag.
type Tag struct {
	Name     string
	Closing  bool
	Attrs    string
	TextBefore string // bytes preceding the tag, not yet consumed by any state
	Start    int // index of the leading '<'
	End      int // index just past the trailing '>'
}

// recognizedTagPattern matches only the four tag names the grammar defines.
// Anything else is junk and is left for the caller to treat as plain text.
// The alternation plus explicit boundary group avoids matching
// a longer identifier that merely starts with one of these names (e.g. it
// will not match "<responsex>" as "response").
var recognizedTagPattern = regexp.MustCompile(`<(/?)(thought|action|response|context_feed)(>|[ \t\r\n][^>]*>)`)

// NextTag scans buf for the next complete recognized tag (one whose
// closing '>' has already arrived). Returns ok=false if no recognized tag
// is fully present yet.
func NextTag(buf []byte) (Tag, bool) {
	loc := recognizedTagPattern.FindSubmatchIndex(buf)
	if loc == nil {
		return Tag{}, false
	}
	closing := loc[3] > loc[2]
	name := string(buf[loc[4]:loc[5]])
	tail := string(buf[loc[6]:loc[7]])
	attrs := strings.TrimSpace(strings.TrimSuffix(tail, ">"))
	return Tag{
		Name:       name,
		Closing:    closing,
		Attrs:      attrs,
		TextBefore: string(buf[:loc[0]]),
		Start:      loc[0],
		End:        loc[1],
	}, true
}
