package domain

import "sort"

const (
	// FirstLevelThreshold is the XP needed to leave level 1.
	FirstLevelThreshold int64 = 200
	// LevelThresholdStep is added to the threshold after every level.
	LevelThresholdStep int64 = 200
)

// Level is the position within the leveling curve derived from total XP.
type Level struct {
	Level     int   `json:"level"`
	XPInLevel int64 `json:"xpInLevel"`
	XPNeeded  int64 `json:"xpNeeded"`
}

// Progression derives level, XP within the level and XP needed for the level from total xp.
// Thresholds grow 200, 400, 600, ... Negative xp is treated as zero.
func Progression(xp int64) Level {
	if xp < 0 {
		xp = 0
	}
	level := 1
	threshold := FirstLevelThreshold
	for xp >= threshold {
		xp -= threshold
		threshold += LevelThresholdStep
		level++
	}
	return Level{Level: level, XPInLevel: xp, XPNeeded: threshold}
}

// ToUser renders the record with its derived level.
func (r ProgressionRecord) ToUser() User {
	lvl := Progression(r.XP)
	return User{
		ID:         r.UserID,
		XP:         r.XP,
		Level:      lvl.Level,
		XPInLevel:  lvl.XPInLevel,
		XPNeeded:   lvl.XPNeeded,
		Shields:    r.Shields,
		Badges:     sortedKeys(r.UnlockedBadges),
		Islands:    sortedKeys(r.UnlockedIslands),
		BestStreak: r.BestStreak,
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, ok := range m {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
