package image

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	responses []string
	calls     int
}

func (s *scriptedCompleter) Complete(_ context.Context, _ string, _ [][]byte) (string, error) {
	resp := s.responses[s.calls%len(s.responses)]
	s.calls++
	return resp, nil
}

func candidatePNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	return encodePNG(t, solidImage(64, 64, c))
}

func TestSelectBestPicksHighestConfidence(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"confidence": 0.2, "box": [0.1, 0.1, 0.8, 0.8]}`,
		`{"confidence": 0.9, "box": [0.0, 0.0, 1.0, 1.0]}`,
		`{"confidence": 0.5, "box": [0.2, 0.2, 0.5, 0.5]}`,
	}}
	selector := NewSelector(completer, 320)

	candidates := [][]byte{
		candidatePNG(t, color.NRGBA{R: 255, A: 255}),
		candidatePNG(t, color.NRGBA{G: 255, A: 255}),
		candidatePNG(t, color.NRGBA{B: 255, A: 255}),
	}

	score, winner := selector.SelectBest(context.Background(), candidates)
	require.NotNil(t, score)
	assert.Equal(t, 0.9, score.Confidence)
	assert.Equal(t, candidates[1], winner)
	assert.Equal(t, [4]int{0, 0, 64, 64}, score.Box)
}

func TestSelectBestNoBoxMeansNotQualified(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"confidence": 0.8, "box": null}`,
	}}
	selector := NewSelector(completer, 320)

	score, winner := selector.SelectBest(context.Background(), [][]byte{
		candidatePNG(t, color.NRGBA{R: 128, A: 255}),
	})
	assert.Nil(t, score)
	assert.Nil(t, winner)
}

func TestSelectBestSkipsUnscorableCandidates(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`this is not json`,
		`{"confidence": 0.4, "box": [0.0, 0.0, 1.0, 1.0]}`,
	}}
	selector := NewSelector(completer, 320)

	candidates := [][]byte{
		candidatePNG(t, color.NRGBA{R: 1, A: 255}),
		candidatePNG(t, color.NRGBA{G: 1, A: 255}),
	}

	score, winner := selector.SelectBest(context.Background(), candidates)
	require.NotNil(t, score)
	assert.Equal(t, 0.4, score.Confidence)
	assert.Equal(t, candidates[1], winner)
}

func TestSelectBestTieKeepsFirst(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"confidence": 0.7, "box": [0.0, 0.0, 1.0, 1.0]}`,
	}}
	selector := NewSelector(completer, 320)

	candidates := [][]byte{
		candidatePNG(t, color.NRGBA{R: 10, A: 255}),
		candidatePNG(t, color.NRGBA{G: 10, A: 255}),
	}

	_, winner := selector.SelectBest(context.Background(), candidates)
	assert.Equal(t, candidates[0], winner)
}
