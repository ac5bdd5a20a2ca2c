package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinkCanonicalizesWhitespace(t *testing.T) {
	spec, err := ParseLink("  a_io1.output ->   b_t1.input  ")
	require.NoError(t, err)
	assert.Equal(t, "a_io1", spec.From)
	assert.Equal(t, "output", spec.Output)
	assert.Equal(t, "b_t1", spec.To)
	assert.Equal(t, "input", spec.Input)
	assert.Equal(t, "a_io1.output -> b_t1.input", spec.String())
}

func TestParseLinkRejectsMalformed(t *testing.T) {
	_, err := ParseLink("not a link")
	assert.ErrorIs(t, err, ErrMalformedLink)
}

func TestConfigAddLinkCanonicalizes(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.AddLink("a.out ->b.in"))
	_, ok := cfg.Links["a.out -> b.in"]
	assert.True(t, ok)
}

func TestConfigCloneIsIndependent(t *testing.T) {
	cfg := NewConfig()
	cfg.AddApp("source", sourceConfig{Size: 60})
	require.NoError(t, cfg.AddLink("source.output -> sink.input"))

	clone := cfg.Clone()
	clone.AddApp("sink", sinkConfig{})
	delete(clone.Links, "source.output -> sink.input")

	assert.Len(t, cfg.Apps, 1)
	assert.Len(t, clone.Apps, 2)
	assert.Len(t, cfg.Links, 1)
	assert.Len(t, clone.Links, 0)
}
