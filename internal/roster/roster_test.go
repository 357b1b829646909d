package roster

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"session-scribe-go/internal/types"
)

func writeRoster(t *testing.T, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue("Sheet1", name, cell); err != nil {
				t.Fatal(err)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndApply(t *testing.T) {
	path := writeRoster(t, [][]string{
		{"Speaker ID", "Player", "Character"},
		{"SPEAKER_1", "Alice", "Tharn Ironfist"},
		{"speaker 2", "Bob", "Mira the Swift"},
		{"", "Carol", "ignored"},
	})

	r, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	utterances := []types.Utterance{
		{Speaker: "SPEAKER_1", Text: "I draw my axe"},
		{Speaker: "SPEAKER_2", Text: "I sneak behind"},
		{Speaker: "SPEAKER_9", Text: "mystery guest"},
	}
	r.Apply(utterances)

	if utterances[0].Speaker != "Tharn Ironfist" {
		t.Errorf("speaker 0 = %q", utterances[0].Speaker)
	}
	if utterances[1].Speaker != "Mira the Swift" {
		t.Errorf("speaker 1 = %q", utterances[1].Speaker)
	}
	if utterances[2].Speaker != "SPEAKER_9" {
		t.Errorf("unknown speaker rewritten to %q", utterances[2].Speaker)
	}
}

func TestLoadRejectsHeaderOnlySheet(t *testing.T) {
	path := writeRoster(t, [][]string{{"Speaker", "Character"}})
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a roster with no data rows")
	}
}

func TestLoadRejectsMissingSpeakerColumn(t *testing.T) {
	path := writeRoster(t, [][]string{
		{"Player", "Character"},
		{"Alice", "Tharn"},
	})
	if _, err := Load(path); err == nil {
		t.Error("Load accepted a roster without a speaker column")
	}
}

func TestNilRosterApplyIsNoop(t *testing.T) {
	var r *Roster
	utterances := []types.Utterance{{Speaker: "SPEAKER_1"}}
	r.Apply(utterances)
	if utterances[0].Speaker != "SPEAKER_1" {
		t.Errorf("nil roster mutated utterances")
	}
}
