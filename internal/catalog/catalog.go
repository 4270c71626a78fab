package catalog

import (
	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// Decoration is the presentation data attached to an item for rendering.
// It never travels on the wire; Decorate re-attaches it after receipt.
type Decoration struct {
	Icon  string
	Color string
}

// Catalog holds the store items available for one game type, keyed by item
// id, plus their presentation decorations keyed by item kind.
type Catalog struct {
	gameType    string
	items       map[string]protocol.Item
	decorations map[protocol.ItemKind]Decoration
}

// ForGameType returns the catalog for a game type, falling back to the
// classic catalog for unknown tags so a newer server cannot strand the
// client without any store at all.
func ForGameType(gameType string) *Catalog {
	if c, ok := catalogs[gameType]; ok {
		return c
	}
	return catalogs[GameTypeClassic]
}

// Item looks up an item definition by id.
func (c *Catalog) Item(id string) (protocol.Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Items returns all items in the catalog.
func (c *Catalog) Items() []protocol.Item {
	out := make([]protocol.Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	return out
}

// Decorate re-attaches the presentation decoration for an item received off
// the wire, looked up by item kind. Unknown kinds are returned untouched.
func (c *Catalog) Decorate(item protocol.Item) protocol.Item {
	if deco, ok := c.decorations[item.Kind]; ok {
		item.Decoration = deco
	}
	return item
}

// DecorateAll re-attaches decorations across a received inventory.
func (c *Catalog) DecorateAll(items []protocol.Item) []protocol.Item {
	out := make([]protocol.Item, len(items))
	for i, item := range items {
		out[i] = c.Decorate(item)
	}
	return out
}

// Strip removes any presentation decoration before transmission. The wire
// format for an item never includes its decoration.
func Strip(item protocol.Item) protocol.Item {
	item.Decoration = nil
	return item
}

// StripAll strips a whole inventory for transmission.
func StripAll(items []protocol.Item) []protocol.Item {
	out := make([]protocol.Item, len(items))
	for i, item := range items {
		out[i] = Strip(item)
	}
	return out
}
