package session

import (
	"crypto/rand"
	"errors"
	"io"
	"math"
	"math/big"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// PhraseGenerator draws backup phrases uniformly from a word list.
// Entropy is Count * log2(len(Words)) bits.
type PhraseGenerator struct {
	Words     []string
	Count     int
	Separator string
	// Rand defaults to crypto/rand.
	Rand io.Reader
}

// DefaultPhraseWords is the default phrase length.
const DefaultPhraseWords = 12

// DefaultPhraseGenerator draws 12 words from the BIP-39 English list
// (2048 words, 132 bits).
func DefaultPhraseGenerator() *PhraseGenerator {
	return &PhraseGenerator{
		Words:     bip39.GetWordList(),
		Count:     DefaultPhraseWords,
		Separator: "-",
	}
}

var errBadWordList = errors.New("session: phrase generator needs at least 2 words and a positive count")

// Generate returns a fresh phrase.
func (g *PhraseGenerator) Generate() (string, error) {
	if len(g.Words) < 2 || g.Count < 1 {
		return "", errBadWordList
	}
	r := g.Rand
	if r == nil {
		r = rand.Reader
	}
	max := big.NewInt(int64(len(g.Words)))
	words := make([]string, g.Count)
	for i := range words {
		n, err := rand.Int(r, max)
		if err != nil {
			return "", err
		}
		words[i] = g.Words[n.Int64()]
	}
	return strings.Join(words, g.Separator), nil
}

// EntropyBits is the strength of a generated phrase.
func (g *PhraseGenerator) EntropyBits() float64 {
	if len(g.Words) < 2 {
		return 0
	}
	return float64(g.Count) * math.Log2(float64(len(g.Words)))
}
