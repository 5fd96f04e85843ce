package client

import (
	"context"
	"fmt"

	"github.com/valyala/fasthttp"
)

type CommandType int

const (
	CommandTypeChat CommandType = iota + 1
	CommandTypeUser
	CommandTypeMessage
)

type CommandOptionType int

const (
	OptionSubCommand CommandOptionType = iota + 1
	OptionSubCommandGroup
	OptionString
	OptionInteger
	OptionBoolean
	OptionUser
	OptionChannel
	OptionRole
	OptionMentionable
	OptionNumber
	OptionAttachment
)

type ApplicationCommandOption struct {
	Type         CommandOptionType          `json:"type"`
	Name         string                     `json:"name"`
	Description  string                     `json:"description"`
	Required     bool                       `json:"required,omitempty"`
	Autocomplete bool                       `json:"autocomplete,omitempty"`
	Options      []ApplicationCommandOption `json:"options,omitempty"`
}

type ApplicationCommand struct {
	ID            Snowflake                  `json:"id,omitempty"`
	ApplicationID Snowflake                  `json:"application_id,omitempty"`
	Type          CommandType                `json:"type,omitempty"`
	Name          string                     `json:"name"`
	Description   string                     `json:"description"`
	Options       []ApplicationCommandOption `json:"options,omitempty"`
}

// BulkOverwriteGlobalCommands replaces every global command of the application.
func (c *Client) BulkOverwriteGlobalCommands(ctx context.Context, applicationID Snowflake, commands []ApplicationCommand) ([]ApplicationCommand, error) {
	path := fmt.Sprintf("/applications/%s/commands", applicationID)

	resBody, err := c.rest.do(ctx, fasthttp.MethodPut, path, commands)
	if err != nil {
		return nil, fmt.Errorf("could not overwrite global commands: %w", err)
	}

	var registered []ApplicationCommand
	if err := wireJSON.Unmarshal(resBody, &registered); err != nil {
		return nil, fmt.Errorf("could not unmarshal response body: %w", err)
	}
	return registered, nil
}
