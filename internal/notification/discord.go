package notification

import (
	"fmt"
	"os"
	"time"

	"opensentinel/internal/models"
	"opensentinel/pkg/errors"

	"github.com/bwmarrin/discordgo"
)

type Message struct {
	Title       string
	Description string
	Rating      models.ScanRating
	Fields      map[string]string
	Timestamp   time.Time
}

// NotificationClient posts scan results to a Discord channel. It is the
// engine's Notifier when OPENSENTINEL_DISCORD_ENABLED is set.
type NotificationClient struct {
	sg *discordgo.Session
}

func NewNotificationClient() (*NotificationClient, error) {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, errors.ErrDiscordNotConfigured
	}

	sg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	if err := sg.Open(); err != nil {
		return nil, err
	}

	return &NotificationClient{sg: sg}, nil
}

func ratingColor(rating models.ScanRating) int {
	switch rating {
	case models.RatingCritical:
		return 0x8B0000
	case models.RatingHigh:
		return 0xFF0000
	case models.RatingMedium:
		return 0xFF8C00
	case models.RatingLow:
		return 0xFFD700
	case models.RatingInformational:
		return 0x00BFFF
	default:
		return 0x808080
	}
}

// NotifyScanFinished satisfies engine.Notifier.
func (c *NotificationClient) NotifyScanFinished(scan *models.Scan) error {
	title := fmt.Sprintf("Scan %s: %s", scan.Status, scan.TargetURL)
	description := fmt.Sprintf("%d findings, overall rating %s",
		len(scan.Vulnerabilities), scan.OverallRating)
	if scan.ErrorMessage != "" {
		description += "\n" + scan.ErrorMessage
	}

	fields := map[string]string{
		"Scan ID": scan.ID,
	}
	if len(scan.ToolFailures) > 0 {
		failed := ""
		for _, failure := range scan.ToolFailures {
			if failed != "" {
				failed += ", "
			}
			failed += failure.ToolID
		}
		fields["Failed tools"] = failed
	}

	return c.Send(Message{
		Title:       title,
		Description: description,
		Rating:      scan.OverallRating,
		Fields:      fields,
		Timestamp:   scan.ScanDate,
	})
}

func (c *NotificationClient) Send(msg Message) error {
	if c.sg == nil {
		return errors.ErrDiscordNotConfigured
	}

	channelID := os.Getenv("DISCORD_CHANNEL_ID")
	if channelID == "" {
		return errors.ErrDiscordNotConfigured
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       ratingColor(msg.Rating),
		Timestamp:   msg.Timestamp.Format(time.RFC3339),
	}

	if len(msg.Fields) > 0 {
		fields := make([]*discordgo.MessageEmbedField, 0, len(msg.Fields))
		for key, value := range msg.Fields {
			fields = append(fields, &discordgo.MessageEmbedField{
				Name:   key,
				Value:  value,
				Inline: true,
			})
		}
		embed.Fields = fields
	}

	_, err := c.sg.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (c *NotificationClient) Close() error {
	if c.sg != nil {
		return c.sg.Close()
	}
	return nil
}
