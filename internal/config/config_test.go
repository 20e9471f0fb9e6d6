package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/wordeko/internal/words"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5175", c.Port)
	assert.Equal(t, 60, c.TickRate)
	assert.Equal(t, 30*time.Minute, c.SessionIdle)
	assert.Zero(t, c.DictionaryTTL)
	assert.False(t, c.Production())

	g := c.Game()
	assert.Equal(t, 480.0, g.Width)
	assert.Equal(t, 800.0, g.Height)
	assert.Equal(t, 30, g.BatchSize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("WORDEKO_TICK_RATE", "30")
	t.Setenv("WORDEKO_DICTIONARY_TTL", "5m")
	t.Setenv("NODE_ENV", "production")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, 30, c.Game().TickRate)
	assert.Equal(t, 5*time.Minute, c.DictionaryTTL)
	assert.True(t, c.Production())
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("WORDEKO_TICK_RATE", "fast")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")

	t.Setenv("WORDEKO_TICK_RATE", "0")
	_, err = Load()
	assert.Error(t, err)
}

func TestDictionarySource(t *testing.T) {
	c := Config{}
	src, ok := c.DictionarySource().(*words.Cached)
	require.True(t, ok)
	assert.NotNil(t, src)

	c.DictionaryFile = "/tmp/words.txt"
	_, ok = c.DictionarySource().(*words.Cached)
	assert.True(t, ok)
}
