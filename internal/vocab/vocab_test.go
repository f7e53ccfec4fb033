package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("compiles valid patterns", func(t *testing.T) {
		v, err := New([]string{`満席`, `空席`})
		require.NoError(t, err)
		assert.Equal(t, []string{`満席`, `空席`}, v.Patterns())
	})

	t.Run("rejects an empty list", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("rejects an invalid pattern with its index", func(t *testing.T) {
		_, err := New([]string{`満席`, `(`})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "patterns[1]")
	})

	t.Run("rejects an empty pattern", func(t *testing.T) {
		_, err := New([]string{`満席`, `  `})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "patterns[1]")
	})

	t.Run("rejects a pattern matching the empty string", func(t *testing.T) {
		_, err := New([]string{`(?:満席)?`})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty string")
	})
}

func TestParse(t *testing.T) {
	t.Run("reads the patterns key", func(t *testing.T) {
		v, err := Parse([]byte("patterns:\n  - \"満席\"\n  - \"空席\"\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{`満席`, `空席`}, v.Patterns())
	})

	t.Run("rejects broken yaml", func(t *testing.T) {
		_, err := Parse([]byte("patterns: [満席"))
		assert.Error(t, err)
	})

	t.Run("rejects a file without patterns", func(t *testing.T) {
		_, err := Parse([]byte("other: value\n"))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads a vocabulary file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vocab.yaml")
		require.NoError(t, os.WriteFile(path, []byte("patterns:\n  - \"満席\"\n"), 0644))

		v, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{`満席`}, v.Patterns())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("error names the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vocab.yaml")
		require.NoError(t, os.WriteFile(path, []byte("patterns:\n  - \"(\"\n"), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "vocab.yaml")
	})
}

func TestDefault(t *testing.T) {
	v := Default()
	require.NotNil(t, v)

	tok, ok := v.FindToken("満席")
	require.True(t, ok)
	assert.Equal(t, "満席", tok)
}

func TestVocabulary_FindToken(t *testing.T) {
	v := Default()

	t.Run("leftmost token wins", func(t *testing.T) {
		tok, ok := v.FindToken("空席 のち 満席")
		require.True(t, ok)
		assert.Equal(t, "空席", tok)
	})

	t.Run("earlier pattern wins at the same position", func(t *testing.T) {
		tok, ok := v.FindToken("空席多数")
		require.True(t, ok)
		assert.Equal(t, "空席多数", tok)
	})

	t.Run("seat count with inner spaces", func(t *testing.T) {
		tok, ok := v.FindToken("残 3 席")
		require.True(t, ok)
		assert.Equal(t, "残 3 席", tok)
	})

	t.Run("seat count with suffix", func(t *testing.T) {
		tok, ok := v.FindToken("残10席以上です")
		require.True(t, ok)
		assert.Equal(t, "残10席以上", tok)
	})

	t.Run("single glyph marks", func(t *testing.T) {
		for _, mark := range []string{"○", "△", "×"} {
			tok, ok := v.FindToken("状況: " + mark)
			require.True(t, ok)
			assert.Equal(t, mark, tok)
		}
	})

	t.Run("no token", func(t *testing.T) {
		_, ok := v.FindToken("準備中")
		assert.False(t, ok)
	})
}

func TestVocabulary_ScanAfterLabel(t *testing.T) {
	v := Default()

	t.Run("crosses line boundaries", func(t *testing.T) {
		tok, ok := v.ScanAfterLabel("ダーツ\nその他の行\n満席", "ダーツ")
		require.True(t, ok)
		assert.Equal(t, "満席", tok)
	})

	t.Run("takes the nearest token after the label", func(t *testing.T) {
		tok, ok := v.ScanAfterLabel("ダーツ 残1席 満席", "ダーツ")
		require.True(t, ok)
		assert.Equal(t, "残1席", tok)
	})

	t.Run("token before the label does not match", func(t *testing.T) {
		_, ok := v.ScanAfterLabel("満席 ダーツ", "ダーツ")
		assert.False(t, ok)
	})

	t.Run("missing label", func(t *testing.T) {
		_, ok := v.ScanAfterLabel("満席", "ダーツ")
		assert.False(t, ok)
	})

	t.Run("label with regex metacharacters is literal", func(t *testing.T) {
		tok, ok := v.ScanAfterLabel("ダーツ(2F) 満席", "ダーツ(2F)")
		require.True(t, ok)
		assert.Equal(t, "満席", tok)
	})
}
