package session

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

func TestDefaultPhraseGenerator(t *testing.T) {
	g := DefaultPhraseGenerator()
	assert.Len(t, g.Words, 2048)
	assert.InDelta(t, 132.0, g.EntropyBits(), 1e-9)

	phrase, err := g.Generate()
	require.NoError(t, err)
	words := strings.Split(phrase, "-")
	require.Len(t, words, DefaultPhraseWords)

	known := make(map[string]bool, len(g.Words))
	for _, w := range bip39.GetWordList() {
		known[w] = true
	}
	for _, w := range words {
		assert.True(t, known[w], "unexpected word %q", w)
	}
}

func TestPhraseGeneratorCustomList(t *testing.T) {
	g := &PhraseGenerator{
		Words:     []string{"alpha", "beta", "gamma", "delta"},
		Count:     6,
		Separator: " ",
	}
	assert.InDelta(t, 12.0, g.EntropyBits(), 1e-9)

	phrase, err := g.Generate()
	require.NoError(t, err)
	words := strings.Fields(phrase)
	require.Len(t, words, 6)
	for _, w := range words {
		assert.Contains(t, g.Words, w)
	}
}

func TestPhraseGeneratorDeterministicSource(t *testing.T) {
	newGen := func() *PhraseGenerator {
		g := DefaultPhraseGenerator()
		g.Rand = bytes.NewReader(bytes.Repeat([]byte{0x42}, 256))
		return g
	}
	a, err := newGen().Generate()
	require.NoError(t, err)
	b, err := newGen().Generate()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPhraseGeneratorRejectsBadConfig(t *testing.T) {
	_, err := (&PhraseGenerator{Words: []string{"only"}, Count: 3}).Generate()
	assert.Error(t, err)
	_, err = (&PhraseGenerator{Words: []string{"a", "b"}, Count: 0}).Generate()
	assert.Error(t, err)
	assert.Zero(t, (&PhraseGenerator{}).EntropyBits())
}

func TestPhraseGeneratorRandFailure(t *testing.T) {
	g := DefaultPhraseGenerator()
	g.Rand = failingReader{}
	_, err := g.Generate()
	assert.Error(t, err)
}

func TestStoreUsesConfiguredPhraseGenerator(t *testing.T) {
	g := &PhraseGenerator{Words: []string{"red", "green", "blue"}, Count: 4, Separator: "."}
	h := newHarness(t, WithPhraseGenerator(g))
	sess := h.create(t)

	bundle, ok := h.store.GenerateBackup(t.Context(), sess.ID)
	require.True(t, ok)
	assert.Len(t, strings.Split(bundle.BackupPhrase, "."), 4)
	assert.Equal(t, 4, h.log.BySession(sess.ID)[0].Detail["backupPhraseLength"])
}
