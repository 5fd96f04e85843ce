package bot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personal/cheesebot/src/client"
)

type fakeAPI struct {
	appID     client.Snowflake
	commands  []client.ApplicationCommand
	responses []client.InteractionResponse
	tokens    []string
	err       error
}

func (f *fakeAPI) BulkOverwriteGlobalCommands(_ context.Context, appID client.Snowflake, commands []client.ApplicationCommand) ([]client.ApplicationCommand, error) {
	f.appID = appID
	f.commands = commands
	return commands, f.err
}

func (f *fakeAPI) CreateInteractionResponse(_ context.Context, _ client.Snowflake, token string, response client.InteractionResponse) error {
	f.tokens = append(f.tokens, token)
	f.responses = append(f.responses, response)
	return f.err
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestOnReadyRegistersCommands(t *testing.T) {
	api := &fakeAPI{}
	b := New(api, testLogger(&bytes.Buffer{}))

	b.OnReady(context.Background(), &client.Ready{Application: client.Application{ID: "42"}})

	assert.Equal(t, client.Snowflake("42"), api.appID)
	names := make([]string, 0, len(api.commands))
	for _, c := range api.commands {
		names = append(names, c.Name)
		assert.Equal(t, client.CommandTypeChat, c.Type)
	}
	assert.Equal(t, []string{"about", "balances", "pay", "organisation"}, names)
}

func TestOnReadyLogsRegistrationFailure(t *testing.T) {
	var buf bytes.Buffer
	b := New(&fakeAPI{err: errors.New("status 401")}, testLogger(&buf))

	b.OnReady(context.Background(), &client.Ready{Application: client.Application{ID: "42"}})

	assert.Contains(t, buf.String(), "error registering commands")
}

func TestCommandOptions(t *testing.T) {
	commands := Commands()

	pay := commands[2]
	require.Len(t, pay.Options, 3)
	assert.Equal(t, client.OptionNumber, pay.Options[1].Type)
	for _, o := range pay.Options {
		assert.True(t, o.Required, o.Name)
	}

	organisation := commands[3]
	require.Len(t, organisation.Options, 1)
	create := organisation.Options[0]
	assert.Equal(t, client.OptionSubCommand, create.Type)
	require.Len(t, create.Options, 1)
	assert.Equal(t, "name", create.Options[0].Name)
}

func TestOnInteractionCreateAnswersCommands(t *testing.T) {
	api := &fakeAPI{}
	b := New(api, testLogger(&bytes.Buffer{}))

	b.OnInteractionCreate(context.Background(), &client.Interaction{
		ID:    "10",
		Type:  client.InteractionApplicationCommand,
		Token: "itok",
		Data:  &client.InteractionData{Name: "about"},
	})

	require.Len(t, api.responses, 1)
	assert.Equal(t, []string{"itok"}, api.tokens)
	resp := api.responses[0]
	assert.Equal(t, client.ResponseChannelMessageWithSource, resp.Type)
	require.NotNil(t, resp.Data)
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, "The end of the world!", resp.Data.Embeds[0].Title)
	assert.Equal(t, "Hello world", resp.Data.Embeds[0].Description)
}

func TestOnInteractionCreateIgnoresOtherTypes(t *testing.T) {
	var buf bytes.Buffer
	api := &fakeAPI{}
	b := New(api, testLogger(&buf))

	b.OnInteractionCreate(context.Background(), &client.Interaction{ID: "10", Type: client.InteractionMessageComponent})

	assert.Empty(t, api.responses)
	assert.Contains(t, buf.String(), "type=MessageComponent")
}

func TestOtherEventsFallThrough(t *testing.T) {
	var buf bytes.Buffer
	var h client.Handler = New(&fakeAPI{}, testLogger(&buf))

	h.OnEvent(context.Background(), "GUILD_CREATE", nil)
	assert.Contains(t, buf.String(), "event=GUILD_CREATE")
}
