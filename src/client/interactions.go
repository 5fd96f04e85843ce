package client

import (
	"context"
	"fmt"

	"github.com/valyala/fasthttp"
)

type InteractionResponseType int

const (
	ResponsePong                     InteractionResponseType = 1
	ResponseChannelMessageWithSource InteractionResponseType = 4
	ResponseDeferredChannelMessage   InteractionResponseType = 5
	ResponseDeferredUpdateMessage    InteractionResponseType = 6
	ResponseUpdateMessage            InteractionResponseType = 7
	ResponseAutocompleteResult       InteractionResponseType = 8
	ResponseModal                    InteractionResponseType = 9
)

const MessageFlagEphemeral = 1 << 6

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type InteractionCallbackData struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
	Flags   int     `json:"flags,omitempty"`
}

type InteractionResponse struct {
	Type InteractionResponseType  `json:"type"`
	Data *InteractionCallbackData `json:"data,omitempty"`
}

// CreateInteractionResponse answers an interaction. It must be called within
// three seconds of receiving the interaction.
func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID Snowflake, token string, response InteractionResponse) error {
	path := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, token)

	if _, err := c.rest.do(ctx, fasthttp.MethodPost, path, response); err != nil {
		return fmt.Errorf("could not respond to interaction %s: %w", interactionID, err)
	}
	return nil
}
