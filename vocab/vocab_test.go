package vocab

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/chat-tender/backend/labels"
	"github.com/onnwee/chat-tender/backend/transcript"
	"github.com/onnwee/chat-tender/backend/twitchapi"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("img"), 0o644))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, labels.Encode("KEKW")+".png")
	touch(t, dir, labels.Encode("catJAM")+".gif")
	touch(t, dir, labels.Encode("LUL")+".png")
	touch(t, dir, labels.Encode("ignored")+".txt")
	touch(t, dir, "not base64!.png")
	touch(t, dir, labels.Encode("Blocked")+".png")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	items, err := LoadDir(dir, DirOptions{Blacklist: NewBlacklist("LUL", labels.Encode("Blocked")+".png")})
	require.NoError(t, err)
	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"KEKW", "catJAM"}, names)
	assert.Equal(t, filepath.Join(dir, labels.Encode("KEKW")+".png"), items[0].Source)

	_, err = LoadDir(filepath.Join(dir, "missing"), DirOptions{})
	assert.Error(t, err)
}

func TestLoadDirsLaterWins(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	touch(t, a, labels.Encode("Pog")+".png")
	touch(t, b, labels.Encode("Pog")+".gif")
	touch(t, b, labels.Encode("Sadge")+".png")
	items, err := LoadDirs([]string{a, b}, DirOptions{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Pog", items[0].Name)
	assert.Equal(t, b, filepath.Dir(items[0].Source))
}

func TestFromNames(t *testing.T) {
	items := FromNames([]string{"b", "a", "", "x", "a"}, "helix", NewBlacklist("x"))
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Name)
	assert.Equal(t, "helix", items[0].Source)
}

func TestFromEmotes(t *testing.T) {
	items := FromEmotes([]twitchapi.Emote{
		{Name: "Kappa", EmoteType: "globals"},
		{Name: "chanHype", EmoteType: "subscriptions"},
		{Name: "LUL"},
		{Name: ""},
	}, NewBlacklist("LUL"))
	require.Len(t, items, 2)
	assert.Equal(t, Item{Name: "Kappa", Source: "twitch:globals"}, items[0])
	assert.Equal(t, "chanHype", items[1].Name)
}

func load(t *testing.T, name string, msgs ...string) *transcript.Transcript {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp\tuser\tmsg\n")
	for _, m := range msgs {
		b.WriteString("00:00:01\tu\t" + m + "\n")
	}
	tr, err := transcript.Load(strings.NewReader(b.String()), name, transcript.FormatChatLog)
	require.NoError(t, err)
	return tr
}

func TestCountExactTokens(t *testing.T) {
	tr := load(t, "A", "KEKW KEKW lol", "KEKWait KEKW", "kekw", "  KEKW   Pog  ")
	items := []Item{{Name: "KEKW"}, {Name: "Pog"}, {Name: "Sadge"}}
	cells, err := Count(context.Background(), []*transcript.Transcript{tr}, items, 0)
	require.NoError(t, err)
	assert.Equal(t, []Cell{{Word: "KEKW", Transcript: "A", Count: 4}, {Word: "Pog", Transcript: "A", Count: 1}}, cells)
}

func TestCountEmptyInputs(t *testing.T) {
	cells, err := Count(context.Background(), nil, []Item{{Name: "x"}}, 2)
	require.NoError(t, err)
	assert.Empty(t, cells)

	cells, err = Count(context.Background(), []*transcript.Transcript{load(t, "A", "x")}, nil, 2)
	require.NoError(t, err)
	assert.Empty(t, cells)

	m, err := BuildMatrix(nil, 10)
	require.NoError(t, err)
	assert.Empty(t, m.Words)
	assert.Empty(t, m.Transcripts)
	assert.Empty(t, m.Counts)
}

func TestThresholdIsPerPair(t *testing.T) {
	a := load(t, "A", strings.Repeat("w ", 20))
	b := load(t, "B", "w w w")
	cells, err := Count(context.Background(), []*transcript.Transcript{a, b}, []Item{{Name: "w"}}, 0)
	require.NoError(t, err)

	m, err := BuildMatrix(cells, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"w"}, m.Words)
	assert.Equal(t, []string{"A", "B"}, m.Transcripts)
	assert.Equal(t, [][]float64{{20, 0}}, m.Counts)
	assert.Equal(t, 20.0, m.At("w", "A"))
	assert.Equal(t, 0.0, m.At("w", "B"), "true count 3 is filtered, not preserved")
}

func TestBuildMatrixZeroFill(t *testing.T) {
	cells := []Cell{
		{Word: "w", Transcript: "A", Count: 20},
		{Word: "w", Transcript: "B", Count: 3},
		{Word: "v", Transcript: "B", Count: 15},
		{Word: "u", Transcript: "A", Count: 10},
	}
	m, err := BuildMatrix(cells, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"v", "w"}, m.Words)
	assert.Equal(t, []string{"A", "B"}, m.Transcripts)
	assert.Equal(t, [][]float64{{0, 15}, {20, 0}}, m.Counts)
	assert.Equal(t, []float64{0, 20}, m.Column(0))
	assert.Len(t, m.Cells(), 4)
}

func TestBuildMatrixRejectsNegative(t *testing.T) {
	_, err := BuildMatrix([]Cell{{Word: "w", Transcript: "A", Count: -1}}, 0)
	assert.True(t, errors.Is(err, ErrNegativeCount))
}
