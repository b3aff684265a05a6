// Package discord connects the shipment bot to Discord: messages and button
// presses in, prompts and admin direct messages out.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/bot"
	"github.com/nurjigit18/shipledger/internal/shipbot/session"
)

// handleTimeout bounds the ledger work done for one inbound event.
const handleTimeout = 30 * time.Second

// Transport is the Discord gateway connection of the bot.
type Transport struct {
	token      string
	dispatcher *bot.Dispatcher

	mu      sync.Mutex
	session *discordgo.Session
}

func New(token string, dispatcher *bot.Dispatcher) *Transport {
	return &Transport{token: token, dispatcher: dispatcher}
}

// Start opens the gateway connection and installs the handlers.
func (t *Transport) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		return errors.New("discord transport already started")
	}

	s, err := discordgo.New(normalizeBotToken(t.token))
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	s.AddHandler(t.onMessage)
	s.AddHandler(t.onInteraction)
	if err := s.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	t.session = s
	logtrace.Logger(ctx).Info().Msg("discord transport started")
	return nil
}

// Stop closes the gateway connection.
func (t *Transport) Stop() error {
	t.mu.Lock()
	s := t.session
	t.session = nil
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

func (t *Transport) current() (*discordgo.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, errors.New("discord transport is not started")
	}
	return t.session, nil
}

// SendDirect sends text to a user in a private channel.
func (t *Transport) SendDirect(ctx context.Context, userID, text string) error {
	s, err := t.current()
	if err != nil {
		return err
	}
	ch, err := s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open direct channel with %s: %w", userID, err)
	}
	_, err = s.ChannelMessageSend(ch.ID, truncate(text, maxContentLen), discordgo.WithContext(ctx))
	return err
}

// NotifyExpired tells a user their idle session was closed.
func (t *Transport) NotifyExpired(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	s, err := t.current()
	if err != nil {
		return
	}
	ch, err := s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		logtrace.Logger(ctx).Warn().Err(err).Str("user_id", userID).Msg("unable to notify expired session")
		return
	}
	if _, err := s.ChannelMessageSendComplex(ch.ID, MessageSend(session.ExpiredPrompt()), discordgo.WithContext(ctx)); err != nil {
		logtrace.Logger(ctx).Warn().Err(err).Str("user_id", userID).Msg("unable to notify expired session")
	}
}

func (t *Transport) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	msg, ok := messageFromCreate(m)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(logtrace.WithTraceID(context.Background()), handleTimeout)
	defer cancel()

	p, reply := t.dispatcher.OnMessage(ctx, msg)
	if !reply {
		return
	}
	if _, err := s.ChannelMessageSendComplex(m.ChannelID, MessageSend(p), discordgo.WithContext(ctx)); err != nil {
		logtrace.Logger(ctx).Error().Err(err).Str("channel_id", m.ChannelID).Msg("unable to send reply")
	}
}

func (t *Transport) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	ctx, cancel := context.WithTimeout(logtrace.WithTraceID(context.Background()), handleTimeout)
	defer cancel()
	log := logtrace.Logger(ctx)

	// acknowledge first; ledger reads may outlast the interaction deadline
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx)); err != nil {
		log.Warn().Err(err).Msg("unable to acknowledge interaction")
	}

	userID, username, sel, err := selectionFromInteraction(i)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring interaction")
		return
	}
	p := t.dispatcher.OnSelection(ctx, userID, username, sel)

	if i.Message != nil {
		edit := discordgo.NewMessageEdit(i.ChannelID, i.Message.ID)
		edit.Components = &[]discordgo.MessageComponent{}
		if _, err := s.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
			log.Debug().Err(err).Msg("unable to clear old buttons")
		}
	}
	if _, err := s.ChannelMessageSendComplex(i.ChannelID, MessageSend(p), discordgo.WithContext(ctx)); err != nil {
		log.Error().Err(err).Str("channel_id", i.ChannelID).Msg("unable to send reply")
	}
}

// messageFromCreate converts a gateway message. Messages from bots are dropped.
func messageFromCreate(m *discordgo.MessageCreate) (bot.Message, bool) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return bot.Message{}, false
	}
	return bot.Message{
		ID:       m.ID,
		UserID:   m.Author.ID,
		Username: m.Author.Username,
		Text:     m.Content,
		Direct:   m.GuildID == "",
	}, true
}

func selectionFromInteraction(i *discordgo.InteractionCreate) (string, string, session.MenuSelection, error) {
	user := i.User
	if i.Member != nil && i.Member.User != nil {
		user = i.Member.User
	}
	if user == nil {
		return "", "", session.MenuSelection{}, errors.New("interaction without a user")
	}
	data, ok := i.Data.(discordgo.MessageComponentInteractionData)
	if !ok {
		return "", "", session.MenuSelection{}, errors.New("not a component interaction")
	}
	sel, err := DecodeCustomID(data.CustomID)
	if err != nil {
		return "", "", session.MenuSelection{}, err
	}
	return user.ID, user.Username, sel, nil
}

func normalizeBotToken(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bot ") {
		return token
	}
	return "Bot " + token
}
