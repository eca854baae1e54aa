package schedule

import (
	"errors"
	"testing"
)

func TestSameSlot(t *testing.T) {
	a := &SlotKey{Week: 3, Time: "18:00", Venue: "A"}
	b := &SlotKey{Week: 3, Time: "18:00", Venue: "A"}
	c := &SlotKey{Week: 3, Time: "20:00", Venue: "A"}

	if !SameSlot(a, b) {
		t.Error("expected equal slots to match")
	}
	if SameSlot(a, c) {
		t.Error("expected different times to differ")
	}
	if !SameSlot(nil, nil) {
		t.Error("two unset assignments are equal")
	}
	if SameSlot(a, nil) || SameSlot(nil, a) {
		t.Error("set and unset assignments differ")
	}
}

func TestModificationIsNoop(t *testing.T) {
	slot := &SlotKey{Week: 3, Time: "18:00", Venue: "A"}
	mod := Modification{MatchID: "X", Original: slot, New: CopySlot(slot), Action: ActionMove}
	if !mod.IsNoop() {
		t.Error("expected modification to same slot to be a no-op")
	}

	mod.New = &SlotKey{Week: 4, Time: "18:00", Venue: "A"}
	if mod.IsNoop() {
		t.Error("expected move to another week not to be a no-op")
	}
}

func TestMatchClone(t *testing.T) {
	score := 2.5
	m := Match{
		ID:    "M1",
		Teams: [2]Team{{Name: "LYON (1)", Gender: "F", PreferredTimes: []string{"18:00"}}, {Name: "PARIS", Gender: "F"}},
		Slot:  &SlotKey{Week: 1, Time: "18:00", Venue: "GYM1"},
		Score: &score,
	}

	c := m.Clone()
	c.Slot.Week = 9
	c.Teams[0].PreferredTimes[0] = "08:00"
	*c.Score = 0

	if m.Slot.Week != 1 {
		t.Error("clone shares slot pointer")
	}
	if m.Teams[0].PreferredTimes[0] != "18:00" {
		t.Error("clone shares preferred times")
	}
	if *m.Score != 2.5 {
		t.Error("clone shares score pointer")
	}
}

func TestTeamKeyIncludesGender(t *testing.T) {
	men := Team{Name: "LYON (1)", Gender: "M"}
	women := Team{Name: "LYON (1)", Gender: "F"}
	if men.Key() == women.Key() {
		t.Error("teams of different gender must not share a key")
	}
	if women.Key() != "LYON (1)|F" {
		t.Errorf("Key() = %q", women.Key())
	}
}

func TestEarliestPreferred(t *testing.T) {
	team := Team{PreferredTimes: []string{"20:00", "18:30", "19:00"}}
	got, ok := team.EarliestPreferred()
	if !ok || got != "18:30" {
		t.Errorf("EarliestPreferred() = %q, %v", got, ok)
	}

	if _, ok := (Team{}).EarliestPreferred(); ok {
		t.Error("team without preferences should report false")
	}
}

func TestMatchValidate(t *testing.T) {
	tests := []struct {
		name    string
		match   Match
		wantErr error
	}{
		{name: "valid unscheduled", match: Match{ID: "M1"}},
		{name: "valid scheduled", match: Match{ID: "M1", Slot: &SlotKey{Week: 1, Time: "18:00", Venue: "A"}}},
		{name: "missing id", match: Match{}, wantErr: ErrEmptyMatchID},
		{name: "bad time", match: Match{ID: "M1", Slot: &SlotKey{Week: 1, Time: "6pm", Venue: "A"}}, wantErr: ErrInvalidTimeFormat},
		{name: "bad week", match: Match{ID: "M1", Slot: &SlotKey{Week: 0, Time: "18:00", Venue: "A"}}, wantErr: ErrInvalidWeek},
		{name: "missing venue", match: Match{ID: "M1", Slot: &SlotKey{Week: 1, Time: "18:00"}}, wantErr: ErrEmptyVenue},
		{
			name:    "bad preference",
			match:   Match{ID: "M1", Teams: [2]Team{{Name: "A", PreferredTimes: []string{"late"}}}},
			wantErr: ErrInvalidPreferences,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.match.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSharesTeam(t *testing.T) {
	a := Match{Teams: [2]Team{{Name: "A", Gender: "M"}, {Name: "B", Gender: "M"}}}
	b := Match{Teams: [2]Team{{Name: "B", Gender: "M"}, {Name: "C", Gender: "M"}}}
	c := Match{Teams: [2]Team{{Name: "B", Gender: "F"}, {Name: "C", Gender: "F"}}}

	if !a.SharesTeam(&b) {
		t.Error("expected shared team B|M")
	}
	if a.SharesTeam(&c) {
		t.Error("B|M and B|F are different teams")
	}
}
