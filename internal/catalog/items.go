package catalog

import (
	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// Known game types. The server picks one at session creation; it selects
// which item catalog and tab layout apply.
const (
	GameTypeClassic       = "Classic Mix"
	GameTypeChristmasBake = "Christmas Bake"
)

var catalogs = map[string]*Catalog{
	GameTypeClassic: {
		gameType: GameTypeClassic,
		items: itemIndex(
			protocol.Item{ID: "extra-shaker", Name: "Extra Shaker", Kind: protocol.ItemKindBuff, Price: 30, DurationSec: 60},
			protocol.Item{ID: "steady-hands", Name: "Steady Hands", Kind: protocol.ItemKindBuff, Price: 50, DurationSec: 90},
			protocol.Item{ID: "spilled-drink", Name: "Spilled Drink", Kind: protocol.ItemKindDebuff, Price: 40, DurationSec: 45},
			protocol.Item{ID: "swapped-labels", Name: "Swapped Labels", Kind: protocol.ItemKindDebuff, Price: 60, DurationSec: 60},
			protocol.Item{ID: "ice-run", Name: "Ice Run", Kind: protocol.ItemKindUtility, Price: 20, DurationSec: 0},
		),
		decorations: map[protocol.ItemKind]Decoration{
			protocol.ItemKindBuff:    {Icon: "cocktail", Color: "green"},
			protocol.ItemKindDebuff:  {Icon: "splash", Color: "red"},
			protocol.ItemKindUtility: {Icon: "bucket", Color: "blue"},
		},
	},
	GameTypeChristmasBake: {
		gameType: GameTypeChristmasBake,
		items: itemIndex(
			protocol.Item{ID: "warm-oven", Name: "Warm Oven", Kind: protocol.ItemKindBuff, Price: 30, DurationSec: 60},
			protocol.Item{ID: "sugar-rush", Name: "Sugar Rush", Kind: protocol.ItemKindBuff, Price: 50, DurationSec: 90},
			protocol.Item{ID: "frozen-butter", Name: "Frozen Butter", Kind: protocol.ItemKindDebuff, Price: 40, DurationSec: 45},
			protocol.Item{ID: "salt-for-sugar", Name: "Salt for Sugar", Kind: protocol.ItemKindDebuff, Price: 60, DurationSec: 60},
			protocol.Item{ID: "flour-dash", Name: "Flour Dash", Kind: protocol.ItemKindUtility, Price: 20, DurationSec: 0},
		),
		decorations: map[protocol.ItemKind]Decoration{
			protocol.ItemKindBuff:    {Icon: "gingerbread", Color: "green"},
			protocol.ItemKindDebuff:  {Icon: "coal", Color: "red"},
			protocol.ItemKindUtility: {Icon: "rolling-pin", Color: "blue"},
		},
	},
}

func itemIndex(items ...protocol.Item) map[string]protocol.Item {
	index := make(map[string]protocol.Item, len(items))
	for _, item := range items {
		index[item.ID] = item
	}
	return index
}
