package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveReply(t *testing.T) {
	variations := ReplyVariations{
		{Text: "Casual take", Tone: "casual"},
		{Text: "Expert take", Tone: "professional"},
	}

	t.Run("edited reply wins", func(t *testing.T) {
		idx := 1
		item := &Item{
			SuggestedReply:    "suggested",
			EditedReply:       "edited by hand",
			SelectedVariation: &idx,
			Variations:        variations,
			Tone:              "helpful",
		}
		reply, tone := item.ResolveReply()
		assert.Equal(t, "edited by hand", reply)
		assert.Equal(t, "helpful", tone)
	})

	t.Run("selected variation beats suggestion", func(t *testing.T) {
		idx := 1
		item := &Item{
			SuggestedReply:    "suggested",
			SelectedVariation: &idx,
			Variations:        variations,
			Tone:              "helpful",
		}
		reply, tone := item.ResolveReply()
		assert.Equal(t, "Expert take", reply)
		assert.Equal(t, "professional", tone)
	})

	t.Run("out of range variation falls back", func(t *testing.T) {
		idx := 5
		item := &Item{
			SuggestedReply:    "suggested",
			SelectedVariation: &idx,
			Variations:        variations,
			Tone:              "helpful",
		}
		reply, tone := item.ResolveReply()
		assert.Equal(t, "suggested", reply)
		assert.Equal(t, "helpful", tone)
	})

	t.Run("suggestion only", func(t *testing.T) {
		item := &Item{SuggestedReply: "suggested", Tone: "helpful"}
		reply, tone := item.ResolveReply()
		assert.Equal(t, "suggested", reply)
		assert.Equal(t, "helpful", tone)
	})

	t.Run("nothing resolvable", func(t *testing.T) {
		item := &Item{}
		reply, _ := item.ResolveReply()
		assert.Empty(t, reply)
	})
}
