package home

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/leeineian/porter/proc"
	"github.com/leeineian/porter/sys"
)

func handleMusicPlay(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	query, _ := data.OptString("query")
	now, _ := data.OptBool("now")

	// Instant Defer
	_ = event.DeferCreateMessage(false)

	if err := startPlayback(event, query, now); err != nil {
		sys.LogError("Playback error: %v", err)
		content := "Failed to start player: " + err.Error()
		_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.MessageUpdate{
			Content: &content,
		})
	}
}

func handleMusicAutocomplete(event *events.AutocompleteInteractionCreate) {
	focused := event.Data.Focused()
	if focused.Name != "query" {
		return
	}
	query := focused.String()
	if query == "" {
		_ = event.AutocompleteResult(nil)
		return
	}

	ctx, cancel := context.WithTimeout(sys.AppContext, 3*time.Second)
	defer cancel()

	vm := proc.GetVoiceManager()
	results, err := vm.Search(ctx, query)
	if err != nil {
		_ = event.AutocompleteResult(nil)
		return
	}

	var choices []discord.AutocompleteChoice
	for i, r := range results {
		if i >= 25 {
			break
		}
		name := r.Title
		if len(name) > 100 {
			name = name[:97] + "..."
		}

		// Use URL as value for instant playback
		val := r.URL
		if len(val) > 100 {
			val = r.Title // Fallback to title if URL is too long
			if len(val) > 100 {
				val = val[:100]
			}
		}

		choices = append(choices, discord.AutocompleteChoiceString{
			Name:  name,
			Value: val,
		})
	}
	_ = event.AutocompleteResult(choices)
}

func startPlayback(event *events.ApplicationCommandInteractionCreate, query string, now bool) error {
	// The invoker must already be in a voice channel.
	var voiceState discord.VoiceState
	var ok bool
	if event.Member() != nil {
		voiceState, ok = event.Client().Caches.VoiceState(*event.GuildID(), event.User().ID)
	}

	if !ok || voiceState.ChannelID == nil {
		return errors.New(sys.MsgVoiceNotInChannel)
	}

	vm := proc.GetVoiceManager()

	// Prepare the session structure synchronously first so GetSession
	// succeeds in parallel calls.
	_ = vm.Prepare(event.Client(), *event.GuildID(), *voiceState.ChannelID)

	joinErr := make(chan error, 1)
	go func() {
		joinErr <- vm.Join(context.Background(), event.Client(), *event.GuildID(), *voiceState.ChannelID)
	}()

	// Start resolution while joining
	track, err := vm.Play(context.Background(), *event.GuildID(), query, now)
	if err != nil {
		return err
	}

	if err := <-joinErr; err != nil {
		return err
	}

	// Wait for metadata to show the title
	_ = track.Wait()
	return finishPlaybackResponse(event, track, now)
}

func finishPlaybackResponse(event *events.ApplicationCommandInteractionCreate, track *proc.Track, now bool) error {
	prefix := "🎶 Playing:"
	if !now {
		prefix = "✅ Added to queue:"
	}

	content := prefix + " **" + track.Title + "**"
	_, _ = event.Client().Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.MessageUpdate{
		Content: &content,
	})
	return nil
}
