package voice

import (
	"strings"
	"unicode"
)

// Segment is one contiguous stretch of dialogue spoken by a single host.
type Segment struct {
	Speaker string
	Text    string
}

const maxSpeakerNameLen = 20

// ParseScript splits a dialogue script into speaker segments. A line starts
// a new segment when it begins with a short alphabetic name followed by a
// colon; continuation lines attach to the current speaker.
func ParseScript(script string) []Segment {
	var (
		segments []Segment
		speaker  string
		text     []string
	)

	flush := func() {
		if speaker != "" && len(text) > 0 {
			segments = append(segments, Segment{Speaker: speaker, Text: strings.Join(text, " ")})
			text = nil
		}
	}

	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if name, rest, ok := splitSpeakerLine(line); ok {
			flush()
			speaker = name
			if rest != "" {
				text = append(text, rest)
			}
			continue
		}
		if speaker != "" {
			text = append(text, line)
		}
	}
	flush()
	return segments
}

func splitSpeakerLine(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	name := strings.TrimSpace(line[:idx])
	if name == "" || len(name) >= maxSpeakerNameLen || !isAlphaName(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(line[idx+1:]), true
}

func isAlphaName(name string) bool {
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' {
			return false
		}
	}
	return true
}

// WordCount counts the dialogue words in a script, ignoring speaker labels.
func WordCount(script string) int {
	count := 0
	for _, segment := range ParseScript(script) {
		count += len(strings.Fields(segment.Text))
	}
	return count
}
