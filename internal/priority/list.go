// Package priority is the ordered priority list shared by day, week and month
// schedules.
package priority

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
)

// Action is a mutation of a priority list.
type Action string

const (
	ActionAdd     Action = "add"
	ActionRemove  Action = "remove"
	ActionToggle  Action = "toggle"
	ActionReorder Action = "reorder"
	ActionRename  Action = "rename"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAdd, ActionRemove, ActionToggle, ActionReorder, ActionRename:
		return a, nil
	default:
		return "", fmt.Errorf("unknown priority action %q", s)
	}
}

// RequiresConfirmation reports whether action on a list of a past period must
// be confirmed by the caller first. Current and future periods never need it.
func RequiresConfirmation(periodIsPast bool, action Action) bool {
	if !periodIsPast {
		return false
	}
	switch action {
	case ActionAdd, ActionRemove, ActionToggle, ActionReorder, ActionRename:
		return true
	}
	return false
}

// List is an ordered priority list of one scope. The zero value is an empty
// day list.
type List struct {
	Scope models.PeriodKind
	Items []models.Priority
}

// NewList copies items into a list of the given scope.
func NewList(scope models.PeriodKind, items []models.Priority) *List {
	return &List{Scope: scope, Items: models.ClonePriorities(items)}
}

func (l *List) Clone() *List {
	return NewList(l.Scope, l.Items)
}

func (l *List) IsEmpty() bool {
	return len(l.Items) == 0
}

func (l *List) Len() int {
	return len(l.Items)
}

// Stats returns the number of completed items and the list length.
func (l *List) Stats() (done, total int) {
	for _, p := range l.Items {
		if p.IsCompleted {
			done++
		}
	}
	return done, len(l.Items)
}

func (l *List) indexOf(id string) int {
	for i, p := range l.Items {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Add appends an incomplete item with a fresh id. A blank title becomes
// "New Priority".
func (l *List) Add(title string) models.Priority {
	title = strings.TrimSpace(title)
	if title == "" {
		title = constants.DefaultPriorityTitle
	}
	p := models.Priority{ID: uuid.New().String(), Title: title}
	l.Items = append(l.Items, p)
	return p
}

func (l *List) Remove(id string) error {
	i := l.indexOf(id)
	if i < 0 {
		return apperrors.InvalidTransition("remove priority", fmt.Sprintf("no priority with id %q", id))
	}
	l.Items = append(l.Items[:i], l.Items[i+1:]...)
	return nil
}

// Toggle flips the completion flag of id and returns the new value.
func (l *List) Toggle(id string) (bool, error) {
	i := l.indexOf(id)
	if i < 0 {
		return false, apperrors.InvalidTransition("toggle priority", fmt.Sprintf("no priority with id %q", id))
	}
	l.Items[i].IsCompleted = !l.Items[i].IsCompleted
	return l.Items[i].IsCompleted, nil
}

func (l *List) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return apperrors.InvalidTransition("rename priority", "title cannot be empty")
	}
	i := l.indexOf(id)
	if i < 0 {
		return apperrors.InvalidTransition("rename priority", fmt.Sprintf("no priority with id %q", id))
	}
	l.Items[i].Title = title
	return nil
}

// Reorder moves the items at from so they sit before the item that was at
// index to (to == Len() appends). The moved items keep their relative order.
func (l *List) Reorder(from []int, to int) error {
	n := len(l.Items)
	if len(from) == 0 {
		return apperrors.InvalidTransition("reorder priorities", "no source indices")
	}
	if to < 0 || to > n {
		return apperrors.InvalidTransition("reorder priorities", fmt.Sprintf("destination %d out of range [0, %d]", to, n))
	}

	src := make([]int, len(from))
	copy(src, from)
	sort.Ints(src)
	moving := make(map[int]bool, len(src))
	for i, idx := range src {
		if idx < 0 || idx >= n {
			return apperrors.InvalidTransition("reorder priorities", fmt.Sprintf("source %d out of range [0, %d)", idx, n))
		}
		if i > 0 && src[i-1] == idx {
			return apperrors.InvalidTransition("reorder priorities", fmt.Sprintf("duplicate source %d", idx))
		}
		moving[idx] = true
	}

	moved := make([]models.Priority, 0, len(src))
	rest := make([]models.Priority, 0, n-len(src))
	insertAt := to
	for i, p := range l.Items {
		if moving[i] {
			moved = append(moved, p)
			if i < to {
				insertAt--
			}
			continue
		}
		rest = append(rest, p)
	}

	out := make([]models.Priority, 0, n)
	out = append(out, rest[:insertAt]...)
	out = append(out, moved...)
	out = append(out, rest[insertAt:]...)
	l.Items = out
	return nil
}

// ImportUnfinished appends a fresh copy of every incomplete source item whose
// title is not already present in the list (case-sensitive). Titles added
// during the import count as present. It returns the number imported.
func (l *List) ImportUnfinished(source []models.Priority) int {
	titles := make(map[string]bool, len(l.Items))
	for _, p := range l.Items {
		titles[p.Title] = true
	}

	imported := 0
	for _, p := range source {
		if p.IsCompleted || titles[p.Title] {
			continue
		}
		l.Items = append(l.Items, models.Priority{ID: uuid.New().String(), Title: p.Title})
		titles[p.Title] = true
		imported++
	}
	return imported
}
