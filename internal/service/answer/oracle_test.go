package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply   string
	err     error
	lastIn  []*schema.Message
	invoked int
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.invoked++
	f.lastIn = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func TestNewOracleProvider_NilModel(t *testing.T) {
	_, err := NewOracleProvider(context.Background(), nil)
	require.Error(t, err)
}

func TestOracleFetch_NormalisesVerdict(t *testing.T) {
	fake := &fakeChatModel{reply: "Yes."}
	p, err := NewOracleProvider(context.Background(), fake)
	require.NoError(t, err)

	got, err := p.Fetch(context.Background(), "  Will it rain?  ")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "yes", got.Answer)
	require.Empty(t, got.Image)

	require.Equal(t, 1, fake.invoked)
	require.Len(t, fake.lastIn, 2)
	require.Equal(t, schema.User, fake.lastIn[1].Role)
	require.Contains(t, fake.lastIn[1].Content, "Will it rain?")
}

func TestOracleFetch_UnclassifiableIsNoAnswer(t *testing.T) {
	p, err := NewOracleProvider(context.Background(), &fakeChatModel{reply: "Ask me later"})
	require.NoError(t, err)

	got, err := p.Fetch(context.Background(), "?")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOracleFetch_ModelError(t *testing.T) {
	p, err := NewOracleProvider(context.Background(), &fakeChatModel{err: errors.New("boom")})
	require.NoError(t, err)

	_, err = p.Fetch(context.Background(), "?")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}
