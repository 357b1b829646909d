package roster

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"session-scribe-go/internal/types"
)

// Roster maps diarized speaker ids (SPEAKER_1, SPEAKER_2, ...) to the
// character names the table uses. Loaded from the campaign's roster
// spreadsheet; purely cosmetic, summaries work without it.
type Roster struct {
	characters map[string]string
}

// Load reads the first sheet of an xlsx roster. Column headers are matched
// by heuristics so the sheet layout does not have to be exact.
func Load(path string) (*Roster, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("roster has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read roster rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("roster has no data rows")
	}

	header := rows[0]
	speakerIdx := -1
	characterIdx := -1
	playerIdx := -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "speaker"):
			if speakerIdx == -1 {
				speakerIdx = i
			}
		case strings.Contains(l, "character") || strings.Contains(l, "pc"):
			if characterIdx == -1 {
				characterIdx = i
			}
		case strings.Contains(l, "player") || strings.Contains(l, "name"):
			if playerIdx == -1 {
				playerIdx = i
			}
		}
	}
	if speakerIdx == -1 {
		return nil, fmt.Errorf("roster has no speaker column")
	}
	// Prefer character names; fall back to player names.
	nameIdx := characterIdx
	if nameIdx == -1 {
		nameIdx = playerIdx
	}
	if nameIdx == -1 {
		return nil, fmt.Errorf("roster has no character or player column")
	}

	characters := make(map[string]string)
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if speakerIdx >= len(row) || nameIdx >= len(row) {
			continue
		}
		speaker := normalizeSpeaker(row[speakerIdx])
		name := strings.TrimSpace(row[nameIdx])
		if speaker == "" || name == "" {
			continue
		}
		characters[speaker] = name
	}
	if len(characters) == 0 {
		return nil, fmt.Errorf("roster has no usable rows")
	}
	return &Roster{characters: characters}, nil
}

// Apply rewrites utterance speaker ids in place. Unknown speakers keep
// their diarized id.
func (r *Roster) Apply(utterances []types.Utterance) {
	if r == nil {
		return
	}
	for i := range utterances {
		if name, ok := r.characters[normalizeSpeaker(utterances[i].Speaker)]; ok {
			utterances[i].Speaker = name
		}
	}
}

func (r *Roster) Len() int {
	if r == nil {
		return 0
	}
	return len(r.characters)
}

func normalizeSpeaker(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
