package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Schema: Object("", map[string]*Schema{
			"text": String("text to echo"),
		}, "text"),
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	}
}

func TestRegistryRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	result, err := r.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Output)
	assert.True(t, result.IsSuccess())
	assert.Equal(t, "echo", result.ToolName)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	err := r.Register(echoTool("echo"))
	assert.ErrorIs(t, err, ErrToolAlreadyRegistered)
}

func TestRegistryRejectsInvalidTools(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Register(&Tool{Execute: func(context.Context, map[string]any) (string, error) { return "", nil }}), ErrToolNameEmpty)
	assert.ErrorIs(t, r.Register(&Tool{Name: "broken"}), ErrToolExecuteNil)
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestExecuteValidatesRequiredArgs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoTool("echo")))

	result, err := r.Execute(context.Background(), "echo", map[string]any{})
	require.ErrorIs(t, err, ErrMissingRequiredArg)
	require.NotNil(t, result)
	assert.False(t, result.IsSuccess())
}

func TestExecutePropagatesToolErrors(t *testing.T) {
	r := NewRegistry()
	boom := NewToolError("unknown_artifact", "no artifact abc")
	require.NoError(t, r.Register(&Tool{
		Name: "failing",
		Execute: func(context.Context, map[string]any) (string, error) {
			return "", boom
		},
	}))

	result, err := r.Execute(context.Background(), "failing", nil)
	require.Error(t, err)
	assert.Same(t, boom, result.Err)
}

func TestNamesSortedAndSubset(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(echoTool("zeta"))
	r.MustRegister(echoTool("alpha"))
	r.MustRegister(echoTool("mid"))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
	assert.Equal(t, 3, r.Count())
	assert.True(t, r.Has("mid"))
	assert.False(t, r.Has("missing"))

	subset := r.Subset([]string{"alpha", "missing", "zeta"})
	require.Len(t, subset, 2)
	assert.Equal(t, "alpha", subset[0].Name)
	assert.Equal(t, "zeta", subset[1].Name)
}

func TestMarshalToolErrorShapes(t *testing.T) {
	t.Run("tool error keeps its kind", func(t *testing.T) {
		out := MarshalToolError(NewToolError("tool_not_allowed", "not now"))

		var decoded map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "tool_not_allowed", decoded["kind"])
		assert.Equal(t, "not now", decoded["message"])
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		out := MarshalToolError(errors.New("disk on fire"))

		var decoded map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "internal", decoded["kind"])
	})
}
