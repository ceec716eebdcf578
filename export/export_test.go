package export

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/chat-tender/backend/activity"
	"github.com/onnwee/chat-tender/backend/cluster"
	"github.com/onnwee/chat-tender/backend/labels"
	"github.com/onnwee/chat-tender/backend/transcript"
	"github.com/onnwee/chat-tender/backend/vocab"
)

func TestDelimiter(t *testing.T) {
	assert.Equal(t, '\t', Delimiter("out/a.tsv"))
	assert.Equal(t, '\t', Delimiter("a.TXT"))
	assert.Equal(t, ',', Delimiter("a.csv"))
	assert.Equal(t, ',', Delimiter("noext"))
}

func TestWriteActivity(t *testing.T) {
	rows := []activity.TimeBucket{
		{Start: transcript.Timestamp(90 * time.Second), Label: activity.TotalLabel, Transcript: "vod, one", Count: 12, IsPeak: true},
		{Start: transcript.Timestamp(90 * time.Second), Label: "lol", Transcript: "vod, one", Count: 0},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteActivity(&buf, ',', rows))
	want := "timestamp,counts,desc,name,is_peak\n" +
		"00:01:30,12,total,\"vod, one\",true\n" +
		"00:01:30,0,lol,\"vod, one\",false\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteMatrixRoundTrip(t *testing.T) {
	m := &vocab.Matrix{
		Words:       []string{"KEKW", "Pog"},
		Transcripts: []string{"a", "b"},
		Counts:      [][]float64{{20, 0}, {0, 15}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, '\t', m))
	assert.Equal(t, "word\ta\tb\nKEKW\t20\t0\nPog\t0\t15\n", buf.String())

	back, err := ReadMatrix(&buf, '\t')
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestReadMatrixRejects(t *testing.T) {
	_, err := ReadMatrix(strings.NewReader("name,a\nx,1\n"), ',')
	assert.Error(t, err)

	_, err = ReadMatrix(strings.NewReader("word,a\nx,-1\n"), ',')
	assert.True(t, errors.Is(err, vocab.ErrNegativeCount))

	_, err = ReadMatrix(strings.NewReader("word,a\nx,many\n"), ',')
	assert.Error(t, err)

	m, err := ReadMatrix(strings.NewReader(""), ',')
	require.NoError(t, err)
	assert.Empty(t, m.Words)
}

func TestWriteLabels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLabels(&buf, []string{"catJAM", "KEKW"}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		parts := strings.Split(l, "\t")
		require.Len(t, parts, 2)
		dec, err := labels.Decode(parts[0])
		require.NoError(t, err)
		assert.Equal(t, parts[1], dec)
	}
}

func TestWriteClusters(t *testing.T) {
	res, err := cluster.Ward([]string{"A", "B", "C"}, [][]float64{{0, 10, 1}})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteClusters(&buf, ',', res, 2))
	want := "position,name,cluster\n" +
		"0,B,1\n1,A,2\n2,C,2\n" +
		"left,right,distance,size\n" +
		"0,2,1,2\n"
	assert.True(t, strings.HasPrefix(buf.String(), want), buf.String())

	buf.Reset()
	require.NoError(t, WriteClusters(&buf, ',', res, 10))
	assert.True(t, strings.HasPrefix(buf.String(), "position,name,cluster\n0,B,1\n1,A,2\n2,C,3\n"), buf.String())

	buf.Reset()
	require.NoError(t, WriteClusters(&buf, ',', &cluster.Result{}, 3))
	assert.Equal(t, "position,name,cluster\nleft,right,distance,size\n", buf.String())
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "labels.tsv")
	err := ToFile(path, func(w io.Writer, comma rune) error {
		assert.Equal(t, '\t', comma)
		return WriteLabels(w, []string{"x"})
	})
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, labels.Encode("x")+"\tx\n", string(b))
}
