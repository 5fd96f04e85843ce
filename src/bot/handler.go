// Package bot is the CheeseBot application: it registers the slash commands
// and answers them.
package bot

import (
	"context"
	"log/slog"
	"time"

	"personal/cheesebot/src/client"
)

// restTimeout bounds REST calls made from event handlers, which run on the read loop.
const restTimeout = 3 * time.Second

// API is the REST surface the bot needs. *client.Client implements it.
type API interface {
	BulkOverwriteGlobalCommands(ctx context.Context, applicationID client.Snowflake, commands []client.ApplicationCommand) ([]client.ApplicationCommand, error)
	CreateInteractionResponse(ctx context.Context, interactionID client.Snowflake, token string, response client.InteractionResponse) error
}

type Bot struct {
	client.BaseHandler
	api    API
	logger *slog.Logger
}

func New(api API, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		BaseHandler: client.BaseHandler{Logger: logger},
		api:         api,
		logger:      logger,
	}
}

// SetAPI sets the REST client. The gateway client needs the handler at
// construction, so the two are linked after both exist.
func (b *Bot) SetAPI(api API) {
	b.api = api
}

func (b *Bot) OnReady(ctx context.Context, ready *client.Ready) {
	b.BaseHandler.OnReady(ctx, ready)

	ctx, cancel := context.WithTimeout(ctx, restTimeout)
	defer cancel()

	registered, err := b.api.BulkOverwriteGlobalCommands(ctx, ready.Application.ID, Commands())
	if err != nil {
		b.logger.Error("error registering commands", "application_id", ready.Application.ID, "error", err)
		return
	}
	b.logger.Info("registered commands", "count", len(registered))
}

func (b *Bot) OnInteractionCreate(ctx context.Context, interaction *client.Interaction) {
	if interaction.Type != client.InteractionApplicationCommand {
		b.logger.Warn("received interaction which was not handled", "type", interaction.Type.String())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, restTimeout)
	defer cancel()

	response := client.InteractionResponse{
		Type: client.ResponseChannelMessageWithSource,
		Data: &client.InteractionCallbackData{
			Embeds: []client.Embed{{
				Title:       "The end of the world!",
				Description: "Hello world",
			}},
		},
	}

	if err := b.api.CreateInteractionResponse(ctx, interaction.ID, interaction.Token, response); err != nil {
		b.logger.Error("error responding to interaction", "id", interaction.ID, "error", err)
		return
	}

	var command string
	if interaction.Data != nil {
		command = interaction.Data.Name
	}
	b.logger.Info("answered command", "command", command, "id", interaction.ID)
}

// Commands is the global command set.
func Commands() []client.ApplicationCommand {
	return []client.ApplicationCommand{
		{
			Type:        client.CommandTypeChat,
			Name:        "about",
			Description: "Description of the bot.",
		},
		{
			Type:        client.CommandTypeChat,
			Name:        "balances",
			Description: "All of your balances.",
		},
		{
			Type:        client.CommandTypeChat,
			Name:        "pay",
			Description: "Give someone cheesecoins.",
			Options: []client.ApplicationCommandOption{
				{
					Type:         client.OptionString,
					Name:         "recipient",
					Description:  "Recipient of the payment",
					Required:     true,
					Autocomplete: true,
				},
				{
					Type:        client.OptionNumber,
					Name:        "cheesecoin",
					Description: "Number of cheesecoin",
					Required:    true,
				},
				{
					Type:        client.OptionString,
					Name:        "from",
					Description: "The account the cheesecoins are from",
					Required:    true,
				},
			},
		},
		{
			Type:        client.CommandTypeChat,
			Name:        "organisation",
			Description: "Organisation commands",
			Options: []client.ApplicationCommandOption{
				{
					Type:        client.OptionSubCommand,
					Name:        "create",
					Description: "Create an organisation.",
					Options: []client.ApplicationCommandOption{
						{
							Type:        client.OptionString,
							Name:        "name",
							Description: "The name of the new organisation",
							Required:    true,
						},
					},
				},
			},
		},
	}
}
