package discord

import (
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/nurjigit18/shipledger/internal/shipbot/session"
)

// Discord message limits.
const (
	maxButtonsPerRow = 5
	maxRows          = 5
	maxContentLen    = 2000
	maxLabelLen      = 80
)

// Components lays the prompt options out as button rows. Options beyond the
// message limit are dropped, except that a trailing cancel option is kept.
func Components(p session.Prompt) []discordgo.MessageComponent {
	opts := p.Options
	if limit := maxButtonsPerRow * maxRows; len(opts) > limit {
		last := opts[len(opts)-1]
		opts = append(append([]session.Option(nil), opts[:limit-1]...), last)
	}
	var rows []discordgo.MessageComponent
	for start := 0; start < len(opts); start += maxButtonsPerRow {
		end := min(start+maxButtonsPerRow, len(opts))
		row := discordgo.ActionsRow{}
		for _, o := range opts[start:end] {
			row.Components = append(row.Components, button(o))
		}
		rows = append(rows, row)
	}
	return rows
}

func button(o session.Option) discordgo.Button {
	style := discordgo.SecondaryButton
	switch o.Action {
	case session.ActionCancel:
		style = discordgo.DangerButton
	case session.ActionFinish, session.ActionStart:
		style = discordgo.SuccessButton
	case session.ActionAddBag, session.ActionAddColor, session.ActionFinishModel, session.ActionAddModel:
		style = discordgo.PrimaryButton
	}
	return discordgo.Button{
		Label:    truncate(o.Label, maxLabelLen),
		Style:    style,
		CustomID: EncodeCustomID(o),
	}
}

// Content is the prompt text clipped to the message limit.
func Content(p session.Prompt) string {
	return truncate(p.Text, maxContentLen)
}

// MessageSend renders a prompt as an outgoing message.
func MessageSend(p session.Prompt) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:    Content(p),
		Components: Components(p),
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
