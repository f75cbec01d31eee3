package domain

import "testing"

func TestProgressionExamples(t *testing.T) {
	cases := []struct {
		xp        int64
		level     int
		xpInLevel int64
		xpNeeded  int64
	}{
		{xp: 0, level: 1, xpInLevel: 0, xpNeeded: 200},
		{xp: 199, level: 1, xpInLevel: 199, xpNeeded: 200},
		{xp: 200, level: 2, xpInLevel: 0, xpNeeded: 400},
		{xp: 250, level: 2, xpInLevel: 50, xpNeeded: 400},
		{xp: 600, level: 3, xpInLevel: 0, xpNeeded: 600},
		{xp: 1199, level: 3, xpInLevel: 599, xpNeeded: 600},
		{xp: 1200, level: 4, xpInLevel: 0, xpNeeded: 800},
	}
	for _, tc := range cases {
		got := Progression(tc.xp)
		if got.Level != tc.level || got.XPInLevel != tc.xpInLevel || got.XPNeeded != tc.xpNeeded {
			t.Fatalf("xp=%d: got %+v, want level=%d in=%d needed=%d", tc.xp, got, tc.level, tc.xpInLevel, tc.xpNeeded)
		}
	}
}

func TestProgressionIsConsistentWithThresholds(t *testing.T) {
	for xp := int64(0); xp <= 20000; xp += 7 {
		lvl := Progression(xp)
		var sum int64
		for k := 1; k < lvl.Level; k++ {
			sum += 200 * int64(k)
		}
		if sum+lvl.XPInLevel != xp {
			t.Fatalf("xp=%d: thresholds %d + in-level %d != xp", xp, sum, lvl.XPInLevel)
		}
		if lvl.XPNeeded != 200*int64(lvl.Level) {
			t.Fatalf("xp=%d: xpNeeded %d, want %d", xp, lvl.XPNeeded, 200*int64(lvl.Level))
		}
		if lvl.XPInLevel >= lvl.XPNeeded {
			t.Fatalf("xp=%d: in-level %d not below needed %d", xp, lvl.XPInLevel, lvl.XPNeeded)
		}
		if again := Progression(xp); again != lvl {
			t.Fatalf("xp=%d: derivation not idempotent", xp)
		}
	}
}

func TestProgressionNegativeIsLevelOne(t *testing.T) {
	if got := Progression(-50); got.Level != 1 || got.XPInLevel != 0 {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestToUserSortsBadges(t *testing.T) {
	rec := NewProgressionRecord("u1")
	rec.XP = 250
	rec.UnlockedBadges["streak-10"] = true
	rec.UnlockedBadges["first-quiz"] = true
	u := rec.ToUser()
	if u.Level != 2 || u.XPInLevel != 50 {
		t.Fatalf("unexpected level %+v", u)
	}
	if len(u.Badges) != 2 || u.Badges[0] != "first-quiz" {
		t.Fatalf("unexpected badges %v", u.Badges)
	}
}
