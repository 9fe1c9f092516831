package storage

import (
	"fmt"
	"strings"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/models"
)

const usersRoot = "users"

func ownerPath(ownerID, collection string) string {
	return fmt.Sprintf("%s/%s/%s", usersRoot, ownerID, collection)
}

func HabitsPath(ownerID string) string {
	return ownerPath(ownerID, constants.CollectionHabits)
}

func DaysPath(ownerID string) string {
	return ownerPath(ownerID, constants.CollectionDays)
}

func WeeksPath(ownerID string) string {
	return ownerPath(ownerID, constants.CollectionWeeks)
}

func MonthsPath(ownerID string) string {
	return ownerPath(ownerID, constants.CollectionMonths)
}

func SettingsPath(ownerID string) string {
	return ownerPath(ownerID, constants.CollectionSettings)
}

// PeriodPath returns the schedule collection of kind.
func PeriodPath(ownerID string, kind models.PeriodKind) (string, error) {
	switch kind {
	case models.PeriodDay:
		return DaysPath(ownerID), nil
	case models.PeriodWeek:
		return WeeksPath(ownerID), nil
	case models.PeriodMonth:
		return MonthsPath(ownerID), nil
	default:
		return "", fmt.Errorf("unknown period kind %q", kind)
	}
}

// OwnerCollections lists every collection holding records of ownerID. An
// account teardown job deletes all of them.
func OwnerCollections(ownerID string) []string {
	return []string{
		HabitsPath(ownerID),
		DaysPath(ownerID),
		WeeksPath(ownerID),
		MonthsPath(ownerID),
		SettingsPath(ownerID),
	}
}

// ValidateSegment rejects owner ids and keys that would escape their
// collection.
func ValidateSegment(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("path segment cannot be empty")
	}
	if strings.ContainsAny(s, "/\\") || s == "." || s == ".." {
		return fmt.Errorf("invalid path segment %q", s)
	}
	return nil
}
