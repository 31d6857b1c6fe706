package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryBuildsScriptedClient(t *testing.T) {
	f := NewFactory()

	client, err := f.New("scripted")
	require.NoError(t, err)
	assert.IsType(t, &ScriptedClient{}, client)

	_, err = f.New("carrier-pigeon")
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestFactoryRegisterProviderWins(t *testing.T) {
	f := NewFactory()
	custom := NewScriptedClient()
	custom.Enqueue(&Completion{Text: "custom"})
	f.RegisterProvider("scripted", func() Client { return custom })

	client, err := f.New("scripted")
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "custom", resp.Text)
}

func TestScriptedClientQueueThenHandler(t *testing.T) {
	c := NewScriptedClient()
	c.Enqueue(&Completion{Text: "first"}, &Completion{Text: "second"})
	c.SetHandler(func(_ context.Context, req Request) (*Completion, error) {
		return &Completion{Text: "handled " + req.System}, nil
	})

	ctx := context.Background()
	for _, want := range []string{"first", "second", "handled sys"} {
		resp, err := c.Complete(ctx, Request{System: "sys"})
		require.NoError(t, err)
		assert.Equal(t, want, resp.Text)
	}

	assert.Len(t, c.Requests(), 3)
}

func TestScriptedClientEmptyDefault(t *testing.T) {
	c := NewScriptedClient()
	resp, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
	assert.Empty(t, resp.ToolCalls)
}

func TestScriptedClientHonoursContext(t *testing.T) {
	c := NewScriptedClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}
