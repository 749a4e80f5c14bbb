package runtime

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)
	loader := NewCensoredLoader(censoredFolder)

	data, err := loader.LoadAll("censored")
	req.NoError(err)

	// One language per embedded dictionary file
	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
	req.NotEmpty(data.Words)
	req.Contains(data.Words, "damn")
	req.Contains(data.Words, "zut")
}

func TestCensoredLoader_UnknownDirectory(t *testing.T) {
	req := require.New(t)
	loader := NewCensoredLoader(censoredFolder)

	_, err := loader.LoadAll("nope")

	req.Error(err)
}

func TestNewEmbeddedModerator(t *testing.T) {
	req := require.New(t)

	moderator, err := NewEmbeddedModerator(slog.Default(), '*')
	req.NoError(err)

	req.Equal("what the ****", moderator.Censor("what the damn"))
}
