package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingStateOrder(t *testing.T) {
	ordered := []EmbeddingState{
		StateNone(),
		StateName(),
		StateParagraphs(0),
		StateParagraphs(1),
		StateParagraphs(3),
		StateParagraphs(10),
	}

	for i := range ordered {
		for j := range ordered {
			got := ordered[i].Compare(ordered[j])
			switch {
			case i < j:
				assert.Equal(t, -1, got, "%s vs %s", ordered[i], ordered[j])
				assert.True(t, ordered[i].Less(ordered[j]))
			case i > j:
				assert.Equal(t, 1, got, "%s vs %s", ordered[i], ordered[j])
				assert.True(t, ordered[i].Satisfies(ordered[j]))
			default:
				assert.Equal(t, 0, got)
				assert.True(t, ordered[i].Satisfies(ordered[j]))
			}
		}
	}
}

func TestEmbeddingStateCode(t *testing.T) {
	tests := []struct {
		state EmbeddingState
		code  int64
	}{
		{StateNone(), 0},
		{StateName(), 1},
		{StateParagraphs(0), 2},
		{StateParagraphs(1), 3},
		{StateParagraphs(5), 7},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.state.Code())
			decoded, err := StateFromCode(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.state, decoded)
		})
	}

	_, err := StateFromCode(-1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in      string
		want    EmbeddingState
		wantErr bool
	}{
		{"name", StateName(), false},
		{"NONE", StateNone(), false},
		{"paragraphs", StateParagraphs(1), false},
		{"paragraphs:4", StateParagraphs(4), false},
		{"paragraphs:0", EmbeddingState{}, true},
		{"paragraphs:x", EmbeddingState{}, true},
		{"content", EmbeddingState{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseState(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
