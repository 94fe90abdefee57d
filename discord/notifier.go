package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/golive/live"
	"github.com/onnwee/golive/telemetry"
)

// Session is the part of *discordgo.Session the notifier uses.
type Session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

var _ Session = (*discordgo.Session)(nil)

// Notifier posts go-live announcements to a single channel.
type Notifier struct {
	session   Session
	channelID string
	templates *TemplateSet
}

var _ live.Notifier = (*Notifier)(nil)

// NewNotifier returns a Notifier posting to channelID. A nil template set
// falls back to DefaultTemplates.
func NewNotifier(session Session, channelID string, templates *TemplateSet) (*Notifier, error) {
	if session == nil {
		return nil, errors.New("discord session nil")
	}
	if strings.TrimSpace(channelID) == "" {
		return nil, errors.New("discord channel id empty")
	}
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Notifier{session: session, channelID: channelID, templates: templates}, nil
}

// FallbackMessage is posted when a login has no announcement template.
func FallbackMessage(login, displayName string) string {
	name := displayName
	if name == "" {
		name = login
	}
	return fmt.Sprintf("Something went wrong, check the logs Pegasus! If you see this and they are not currently online, "+
		"please ping them and you will get a reward! (no announcement template for %s)", name)
}

// Notify announces that login went live. Known logins get their embed; any
// other login gets FallbackMessage. Send failures wrap live.ErrTransport.
// Each call counts exactly one outcome: sent, fallback or failed.
func (n *Notifier) Notify(ctx context.Context, login, displayName string) error {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("broadcaster", login), slog.String("channel", n.channelID))
	reqCtx := discordgo.WithContext(ctx)

	tmpl, ok := n.templates.Lookup(login)
	if !ok {
		log.Warn("discord: no template for broadcaster; sending fallback message")
		if _, err := n.session.ChannelMessageSend(n.channelID, FallbackMessage(login, displayName), reqCtx); err != nil {
			telemetry.RecordNotification(login, telemetry.OutcomeFailed)
			return fmt.Errorf("discord: send fallback for %s: %v: %w", login, err, live.ErrTransport)
		}
		telemetry.RecordNotification(login, telemetry.OutcomeFallback)
		return nil
	}

	avatar := n.avatarURL(ctx, log, tmpl.AuthorUserID)
	embed, _ := n.templates.Render(login, avatar)
	if _, err := n.session.ChannelMessageSendEmbed(n.channelID, embed, reqCtx); err != nil {
		telemetry.RecordNotification(login, telemetry.OutcomeFailed)
		return fmt.Errorf("discord: send embed for %s: %v: %w", login, err, live.ErrTransport)
	}
	telemetry.RecordNotification(login, telemetry.OutcomeSent)
	log.Info("discord: announcement sent", slog.String("title", embed.Title))
	return nil
}

// avatarURL resolves the author icon. Lookup failures only drop the icon.
func (n *Notifier) avatarURL(ctx context.Context, log *slog.Logger, userID string) string {
	if userID == "" {
		return ""
	}
	u, err := n.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		log.Warn("discord: avatar lookup failed; omitting author icon", slog.String("user_id", userID), slog.Any("err", err))
		return ""
	}
	if u == nil {
		return ""
	}
	return u.AvatarURL("")
}
