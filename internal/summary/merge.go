package summary

import (
	"strings"

	"session-scribe-go/internal/types"
)

// Entity merge across scene summaries uses exact case-insensitive name
// matching. No fuzzy or alias matching: "Mayor Aldric" and "the mayor" stay
// separate entries, a documented simplification.

func canon(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func mergeKeyEvents(summaries []types.SceneSummary) []string {
	var events []string
	for _, s := range summaries {
		events = append(events, s.Events...)
	}
	return events
}

func mergeCharacterUpdates(summaries []types.SceneSummary) []types.CharacterUpdate {
	index := map[string]int{}
	var updates []types.CharacterUpdate
	for _, s := range summaries {
		for _, m := range s.CharactersMentioned {
			key := canon(m.Name)
			if key == "" {
				continue
			}
			i, ok := index[key]
			if !ok {
				i = len(updates)
				index[key] = i
				updates = append(updates, types.CharacterUpdate{Name: strings.TrimSpace(m.Name)})
			}
			if note := strings.TrimSpace(m.Note); note != "" && !containsFold(updates[i].Changes, note) {
				updates[i].Changes = append(updates[i].Changes, note)
			}
		}
	}
	return updates
}

func mergeNPCUpdates(summaries []types.SceneSummary) []types.NPCUpdate {
	index := map[string]int{}
	var updates []types.NPCUpdate
	for _, s := range summaries {
		for _, m := range s.NPCsMentioned {
			key := canon(m.Name)
			if key == "" {
				continue
			}
			i, ok := index[key]
			if !ok {
				i = len(updates)
				index[key] = i
				updates = append(updates, types.NPCUpdate{Name: strings.TrimSpace(m.Name)})
			}
			if note := strings.TrimSpace(m.Note); note != "" && !containsFold(updates[i].Details, note) {
				updates[i].Details = append(updates[i].Details, note)
			}
		}
	}
	return updates
}

func mergeItems(summaries []types.SceneSummary) []types.ItemOrClue {
	index := map[string]int{}
	var items []types.ItemOrClue
	for _, s := range summaries {
		for _, item := range s.Items {
			key := canon(item.Name)
			if key == "" {
				continue
			}
			i, ok := index[key]
			if !ok {
				index[key] = len(items)
				items = append(items, item)
				continue
			}
			// First mention wins; later scenes only fill blanks.
			if items[i].Description == "" {
				items[i].Description = item.Description
			}
			if items[i].Significance == "" {
				items[i].Significance = item.Significance
			}
		}
	}
	return items
}

func mergeOpenThreads(summaries []types.SceneSummary) []types.OpenThread {
	seen := map[string]bool{}
	var threads []types.OpenThread
	for _, s := range summaries {
		for _, thread := range s.OpenThreads {
			key := canon(thread.Description)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			threads = append(threads, thread)
		}
	}
	return threads
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
