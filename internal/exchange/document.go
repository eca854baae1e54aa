// Package exchange reads and writes the versioned modification export
// document shared with other planning tools.
package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/javiermolinar/matchplan/internal/conflict"
	"github.com/javiermolinar/matchplan/internal/schedule"
)

// Version is the only document version this package reads and writes.
const Version = "1.0"

var (
	ErrUnsupportedVersion = errors.New("unsupported export version")
	ErrMalformedSlot      = errors.New("malformed slot")
	ErrMissingMatchID     = errors.New("modification without match_id")
)

// Slot is the exported assignment shape.
type Slot struct {
	Semaine int    `json:"semaine"`
	Horaire string `json:"horaire"`
	Gymnase string `json:"gymnase"`
}

// Modification is one exported log entry. Reason carries the action.
type Modification struct {
	MatchID   string    `json:"match_id"`
	Timestamp time.Time `json:"timestamp"`
	Original  *Slot     `json:"original"`
	New       *Slot     `json:"new"`
	Reason    string    `json:"reason"`
	Author    string    `json:"author"`
}

// Statistics summarises the exported edits.
type Statistics struct {
	TotalModifications int     `json:"total_modifications"`
	MatchesModified    int     `json:"matches_modified"`
	ConflictsResolved  int     `json:"conflicts_resolved"`
	PenaltyDelta       float64 `json:"penalty_delta"`
}

// Document is the export file.
type Document struct {
	ExportVersion string         `json:"export_version"`
	ExportedAt    time.Time      `json:"exported_at"`
	BaseSolution  string         `json:"base_solution"`
	Modifications []Modification `json:"modifications"`
	Statistics    Statistics     `json:"statistics"`
}

// PenaltyFunc scores a match set. Lower is better.
type PenaltyFunc func([]schedule.Match) float64

// Options configures Build.
type Options struct {
	BaseSolution string
	Author       string
	Now          func() time.Time
}

// ComputeStatistics derives the statistics block. A nil penalty leaves
// PenaltyDelta at zero.
func ComputeStatistics(mods []schedule.Modification, original, current []schedule.Match, d conflict.Detector, penalty PenaltyFunc) Statistics {
	matches := make(map[string]struct{}, len(mods))
	for _, m := range mods {
		matches[m.MatchID] = struct{}{}
	}

	before := conflict.Count(d.DetectAll(original))
	after := conflict.Count(d.DetectAll(current))

	s := Statistics{
		TotalModifications: len(mods),
		MatchesModified:    len(matches),
		ConflictsResolved:  max(0, before-after),
	}
	if penalty != nil {
		s.PenaltyDelta = penalty(current) - penalty(original)
	}
	return s
}

// Build creates a document from the modification log.
func Build(mods []schedule.Modification, stats Statistics, opts Options) Document {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	doc := Document{
		ExportVersion: Version,
		ExportedAt:    opts.Now().UTC(),
		BaseSolution:  opts.BaseSolution,
		Modifications: make([]Modification, 0, len(mods)),
		Statistics:    stats,
	}
	for _, m := range mods {
		doc.Modifications = append(doc.Modifications, Modification{
			MatchID:   m.MatchID,
			Timestamp: m.Timestamp.UTC(),
			Original:  fromKey(m.Original),
			New:       fromKey(m.New),
			Reason:    string(m.Action),
			Author:    opts.Author,
		})
	}
	sort.SliceStable(doc.Modifications, func(i, j int) bool {
		return doc.Modifications[i].MatchID < doc.Modifications[j].MatchID
	})
	return doc
}

// Marshal encodes the document as indented JSON.
func (d Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Parse decodes and validates a document.
func Parse(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("decoding export: %w", err)
	}
	if d.ExportVersion != Version {
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, d.ExportVersion)
	}
	for i, m := range d.Modifications {
		if m.MatchID == "" {
			return Document{}, fmt.Errorf("modification %d: %w", i, ErrMissingMatchID)
		}
		for _, s := range []*Slot{m.Original, m.New} {
			if s == nil {
				continue
			}
			if err := s.key().Validate(); err != nil {
				return Document{}, fmt.Errorf("%w: match %s: %w", ErrMalformedSlot, m.MatchID, err)
			}
		}
	}
	return d, nil
}

// ToModifications converts the document entries into log entries. Reasons
// that are not a known action are imported as moves.
func (d Document) ToModifications() []schedule.Modification {
	out := make([]schedule.Modification, 0, len(d.Modifications))
	for _, m := range d.Modifications {
		action := schedule.Action(m.Reason)
		if !action.Valid() {
			action = schedule.ActionMove
		}
		out = append(out, schedule.Modification{
			MatchID:   m.MatchID,
			Original:  toKey(m.Original),
			New:       toKey(m.New),
			Timestamp: m.Timestamp,
			Action:    action,
		})
	}
	return out
}

func (s Slot) key() schedule.SlotKey {
	return schedule.SlotKey{Week: s.Semaine, Time: s.Horaire, Venue: s.Gymnase}
}

func fromKey(k *schedule.SlotKey) *Slot {
	if k == nil {
		return nil
	}
	return &Slot{Semaine: k.Week, Horaire: k.Time, Gymnase: k.Venue}
}

func toKey(s *Slot) *schedule.SlotKey {
	if s == nil {
		return nil
	}
	k := s.key()
	return &k
}
