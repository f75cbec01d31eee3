package ledger

import (
	"fmt"

	"exam-arena-service/internal/domain"
)

// PowerUpPrices is the XP cost of each in-session effect.
var PowerUpPrices = map[domain.PowerUp]int64{
	domain.PowerUpHint:       20,
	domain.PowerUpFiftyFifty: 30,
	domain.PowerUpFreeze:     25,
	domain.PowerUpSwap:       35,
	domain.PowerUpShield:     50,
	domain.PowerUpBoost:      40,
	domain.PowerUpXray:       60,
	domain.PowerUpOvertime:   30,
	domain.PowerUpAutopilot:  100,
	domain.PowerUpSnap:       45,
}

const (
	// RevivePrice buys one more life after survival lives run out.
	RevivePrice int64 = 50
	// ShieldPrice buys one shield into the inventory.
	ShieldPrice int64 = 50
)

// Island is a purchasable map region.
type Island struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Islands is the fixed island map in unlock order.
var Islands = []Island{
	{ID: "island-1", Name: "Basics Beach", Price: 0},
	{ID: "island-2", Name: "History Harbor", Price: 200},
	{ID: "island-3", Name: "Polity Peaks", Price: 500},
	{ID: "island-4", Name: "Science Shoals", Price: 900},
	{ID: "island-5", Name: "Champion Cove", Price: 1500},
}

// PriceOf returns the cost of effect p.
func PriceOf(p domain.PowerUp) (int64, error) {
	price, ok := PowerUpPrices[p]
	if !ok {
		return 0, fmt.Errorf("no price for power-up %q", p)
	}
	return price, nil
}

func islandByID(id string) (Island, bool) {
	for _, is := range Islands {
		if is.ID == id {
			return is, true
		}
	}
	return Island{}, false
}

// SpinWheel lists the daily spin rewards; each slot is equally likely.
var SpinWheel = []int64{10, 20, 25, 50, 75, 100}
