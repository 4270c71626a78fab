package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

func TestDecorationNeverSerialized(t *testing.T) {
	cat := ForGameType(GameTypeChristmasBake)
	item, ok := cat.Item("warm-oven")
	require.True(t, ok)

	decorated := cat.Decorate(item)
	require.NotNil(t, decorated.Decoration)

	data, err := json.Marshal(decorated)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "gingerbread", "decoration stays off the wire")

	var back protocol.Item
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Nil(t, back.Decoration)
	assert.Equal(t, item.ID, back.ID)
}

func TestStripAndDecorateAll(t *testing.T) {
	cat := ForGameType(GameTypeClassic)
	items := cat.DecorateAll(cat.Items())
	for _, item := range items {
		require.NotNil(t, item.Decoration)
	}

	stripped := StripAll(items)
	for _, item := range stripped {
		assert.Nil(t, item.Decoration)
	}

	redecorated := cat.DecorateAll(stripped)
	for _, item := range redecorated {
		deco, ok := item.Decoration.(Decoration)
		require.True(t, ok, "decoration re-attached by kind lookup")
		assert.NotEmpty(t, deco.Icon)
	}
}

func TestUnknownGameTypeFallsBack(t *testing.T) {
	cat := ForGameType("Totally New Mode")
	require.NotNil(t, cat)
	assert.NotEmpty(t, cat.Items())
}

func TestUnknownItemKindPassesThrough(t *testing.T) {
	cat := ForGameType(GameTypeClassic)
	item := cat.Decorate(protocol.Item{ID: "mystery", Kind: "mystery"})
	assert.Nil(t, item.Decoration)
}
