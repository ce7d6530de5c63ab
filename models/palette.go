package models

// Palette is the fixed set of player colours, handed out in order.
var Palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#bfef45",
	"#fabed4", "#469990", "#dcbeff", "#9a6324",
}

// NextColor returns the first palette colour nobody in the room uses.
func (r *Room) NextColor() (string, bool) {
	taken := make(map[string]bool, len(r.Players))
	for _, p := range r.Players {
		taken[p.Color] = true
	}
	for _, c := range Palette {
		if !taken[c] {
			return c, true
		}
	}
	return "", false
}
