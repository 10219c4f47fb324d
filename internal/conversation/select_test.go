package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "petbot/internal/transport"
)

type pet struct {
	ID   string
	Name string
}

var pets = []pet{{"a", "Rex"}, {"b", "Mia"}, {"c", "Bob"}}

func petConfig(mode Mode) SelectConfig[pet] {
	return SelectConfig[pet]{
		Values:  pets,
		Label:   func(p pet) string { return p.Name },
		Message: "Escolha o pet",
		Mode:    mode,
	}
}

func TestSelectInlineRepromptsUntilRecognized(t *testing.T) {
	client := &fakeClient{}
	s := &scriptSession{client: client, updates: []kit.Update{
		text("Rex"),
		callback("cb1", "values-7"),
		callback("cb2", "other:token"),
		callback("cb3", "values-1"),
	}}

	got, err := Select(context.Background(), s, petConfig(ModeInline))
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, []string{"Escolha o pet", ChoosePrompt, ChoosePrompt, ChoosePrompt}, client.texts())
	assert.Equal(t, []string{"cb3"}, client.answered)

	kb := client.sent[0].Opt.Keyboard
	require.NotNil(t, kb)
	require.Len(t, kb.Rows, 2)
	assert.Equal(t, "values-0", kb.Rows[0][0].Data)
	assert.Equal(t, "values-2", kb.Rows[1][0].Data)
	assert.Len(t, kb.Rows[1], 1)
}

func TestSelectOrCancelInlineCancel(t *testing.T) {
	client := &fakeClient{}
	s := &scriptSession{client: client, updates: []kit.Update{callback("cb", CancelLabel)}}

	choice, err := SelectOrCancel(context.Background(), s, petConfig(ModeInline))
	require.NoError(t, err)
	assert.True(t, choice.IsCancelled())
	_, ok := choice.Value()
	assert.False(t, ok)
	assert.Equal(t, []string{"Escolha o pet", CancelledText}, client.texts())
	assert.Equal(t, []string{"cb"}, client.answered)

	kb := client.sent[0].Opt.Keyboard
	require.Len(t, kb.Rows, 2)
	assert.Equal(t, CancelLabel, kb.Rows[1][1].Text)
}

func TestSelectWithoutCancelIgnoresCancelToken(t *testing.T) {
	client := &fakeClient{}
	s := &scriptSession{client: client, updates: []kit.Update{callback("x", CancelLabel), callback("y", "values-0")}}

	got, err := Select(context.Background(), s, petConfig(ModeInline))
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	for _, row := range client.sent[0].Opt.Keyboard.Rows {
		for _, b := range row {
			assert.NotEqual(t, CancelLabel, b.Text)
		}
	}
}

func TestSelectReplyMatchesLabel(t *testing.T) {
	client := &fakeClient{}
	s := &scriptSession{client: client, updates: []kit.Update{text("Nope"), callback("cb", "values-0"), text(" Bob ")}}

	choice, err := SelectOrCancel(context.Background(), s, petConfig(ModeReply))
	require.NoError(t, err)
	v, ok := choice.Value()
	require.True(t, ok)
	assert.Equal(t, "c", v.ID)
	assert.Empty(t, client.answered)
	assert.Equal(t, []string{"Escolha o pet", ChoosePrompt, ChoosePrompt}, client.texts())

	kb := client.sent[0].Opt.Keyboard
	assert.True(t, kb.OneTime)
}

func TestSelectReplyCancelRemovesKeyboard(t *testing.T) {
	client := &fakeClient{}
	s := &scriptSession{client: client, updates: []kit.Update{text(CancelLabel)}}

	choice, err := SelectOrCancel(context.Background(), s, petConfig(ModeReply))
	require.NoError(t, err)
	assert.True(t, choice.IsCancelled())
	require.Len(t, client.sent, 2)
	assert.True(t, client.sent[1].Opt.RemoveKeyboard)
}

func TestSelectEmptyValues(t *testing.T) {
	_, err := Select(context.Background(), &scriptSession{client: &fakeClient{}}, SelectConfig[pet]{Label: func(p pet) string { return p.Name }})
	assert.ErrorIs(t, err, ErrNoOptions)
}

func TestSelectWaitsUntilContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Select(ctx, &scriptSession{client: &fakeClient{}}, petConfig(ModeInline))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
