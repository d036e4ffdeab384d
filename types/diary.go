package types

import "time"

// DiaryItemKind selects one of the four entry join tables.
type DiaryItemKind string

const (
	DiaryEmotions   DiaryItemKind = "emotions"
	DiarySensations DiaryItemKind = "sensations"
	DiaryFeelings   DiaryItemKind = "feelings"
	DiarySymptoms   DiaryItemKind = "symptoms"
)

// DiaryItemKinds lists every kind in a stable order.
var DiaryItemKinds = []DiaryItemKind{DiaryEmotions, DiarySensations, DiaryFeelings, DiarySymptoms}

// LookupKind returns the reference table a diary item of this kind points at.
func (k DiaryItemKind) LookupKind() LookupKind {
	return LookupKind(k)
}

// DiaryEntry is a dated emotional diary entry of a user.
type DiaryEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id" validate:"required"`
	EntryDate time.Time `json:"entry_date" db:"entry_date" validate:"required"`
	Title     *string   `json:"title,omitempty" db:"title" validate:"omitempty,max=200"`
	Content   string    `json:"content" db:"content"`
	MoodScore *int      `json:"mood_score,omitempty" db:"mood_score" validate:"omitempty,min=1,max=10"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	Emotions   []DiaryItem `json:"emotions" db:"-"`
	Sensations []DiaryItem `json:"sensations" db:"-"`
	Feelings   []DiaryItem `json:"feelings" db:"-"`
	Symptoms   []DiaryItem `json:"symptoms" db:"-"`
}

// Items returns the slice for kind.
func (e *DiaryEntry) Items(kind DiaryItemKind) []DiaryItem {
	switch kind {
	case DiaryEmotions:
		return e.Emotions
	case DiarySensations:
		return e.Sensations
	case DiaryFeelings:
		return e.Feelings
	case DiarySymptoms:
		return e.Symptoms
	}
	return nil
}

// SetItems replaces the slice for kind.
func (e *DiaryEntry) SetItems(kind DiaryItemKind, items []DiaryItem) {
	switch kind {
	case DiaryEmotions:
		e.Emotions = items
	case DiarySensations:
		e.Sensations = items
	case DiaryFeelings:
		e.Feelings = items
	case DiarySymptoms:
		e.Symptoms = items
	}
}

// DiaryItem is a row of an entry join table: the entry, the referenced lookup
// row and how intensely it was felt.
type DiaryItem struct {
	ID        string    `json:"id" db:"id"`
	EntryID   string    `json:"entry_id" db:"entry_id"`
	ItemID    string    `json:"item_id" db:"item_id" validate:"required"`
	Intensity *int      `json:"intensity,omitempty" db:"intensity" validate:"omitempty,min=1,max=10"`
	Notes     *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Item *Lookup `json:"item,omitempty" db:"-"`
}
