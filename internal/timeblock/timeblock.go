package timeblock

import (
	"fmt"
	"time"

	"github.com/julianstephens/daybook/internal/calendar"
	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/models"
)

// Block is a slice of the waking window, optionally holding one priority.
type Block struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	PriorityID string    `json:"priority_id,omitempty"`
	Title      string    `json:"title,omitempty"`
}

// Minutes returns the block length in minutes.
func (b Block) Minutes() int {
	return int(b.End.Sub(b.Start).Minutes())
}

type Generator struct {
	blockMin int
}

func New(blockMin int) *Generator {
	if blockMin <= 0 {
		blockMin = constants.DefaultBlockMin
	}
	return &Generator{blockMin: blockMin}
}

// Window resolves wake and sleep (HH:MM) on day. A sleep time at or before the
// wake time falls on the next calendar day.
func Window(day time.Time, wake, sleep string) (time.Time, time.Time, error) {
	wakeMin, err := calendar.ParseTimeToMinutes(wake)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid wake time: %w", err)
	}
	sleepMin, err := calendar.ParseTimeToMinutes(sleep)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid sleep time: %w", err)
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	start := midnight.Add(time.Duration(wakeMin) * time.Minute)
	end := midnight.Add(time.Duration(sleepMin) * time.Minute)
	if sleepMin <= wakeMin {
		end = midnight.AddDate(0, 0, 1).Add(time.Duration(sleepMin) * time.Minute)
	}
	return start, end, nil
}

// Generate splits the waking window of day into blocks and places the day's
// unfinished priorities into them in list order. Priorities that do not fit
// are left out; the last block may be shorter than the block length.
func (g *Generator) Generate(day time.Time, wake, sleep string, priorities []models.Priority) ([]Block, error) {
	start, end, err := Window(day, wake, sleep)
	if err != nil {
		return nil, err
	}

	step := time.Duration(g.blockMin) * time.Minute
	var blocks []Block
	for cur := start; cur.Before(end); cur = cur.Add(step) {
		blockEnd := cur.Add(step)
		if blockEnd.After(end) {
			blockEnd = end
		}
		blocks = append(blocks, Block{Start: cur, End: blockEnd})
	}

	idx := 0
	for _, p := range priorities {
		if p.IsCompleted {
			continue
		}
		if idx >= len(blocks) {
			break
		}
		blocks[idx].PriorityID = p.ID
		blocks[idx].Title = p.Title
		idx++
	}

	return blocks, nil
}
