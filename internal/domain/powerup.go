package domain

import "fmt"

// PowerUp is a consumable effect bought with XP during a session.
type PowerUp string

const (
	PowerUpHint       PowerUp = "hint"
	PowerUpFiftyFifty PowerUp = "fiftyFifty"
	PowerUpFreeze     PowerUp = "freeze"
	PowerUpSwap       PowerUp = "swap"
	PowerUpShield     PowerUp = "shield"
	PowerUpBoost      PowerUp = "boost"
	PowerUpXray       PowerUp = "xray"
	PowerUpOvertime   PowerUp = "overtime"
	PowerUpAutopilot  PowerUp = "autopilot"
	PowerUpSnap       PowerUp = "snap"
)

// PowerUps lists every effect in shop order.
var PowerUps = []PowerUp{
	PowerUpHint, PowerUpFiftyFifty, PowerUpFreeze, PowerUpSwap, PowerUpShield,
	PowerUpBoost, PowerUpXray, PowerUpOvertime, PowerUpAutopilot, PowerUpSnap,
}

// ParsePowerUp validates a power-up name from a client.
func ParsePowerUp(raw string) (PowerUp, error) {
	for _, p := range PowerUps {
		if string(p) == raw {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown power-up %q", raw)
}
