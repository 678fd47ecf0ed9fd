package oracle_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolcal/internal/oracle"
	"poolcal/internal/schedule"
)

var candidates = []string{"Frühschwimmen", "Öffentliches Schwimmen"}

func TestLabelParsesAndCaches(t *testing.T) {
	calls := 0
	var prompt string
	gen := func(_ context.Context, p string) (string, error) {
		calls++
		prompt = p
		return "```json\n{\"labels\":[{\"label\":\"Frühschwimmen\",\"score\":0.9},{\"label\":\"\",\"score\":0.5},{\"label\":\"Öffentliches Schwimmen\",\"score\":1.7}]}\n```", nil
	}
	l, err := oracle.New("fake", gen, 8, 0)
	require.NoError(t, err)

	labels, err := l.Label(context.Background(), "Mo 06:00 – 08:00", candidates)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Label{{Name: "Frühschwimmen", Score: 0.9}}, labels)
	assert.Contains(t, prompt, "- Frühschwimmen\n")
	assert.Contains(t, prompt, "Mo 06:00 – 08:00")

	_, err = l.Label(context.Background(), "Mo 06:00 – 08:00", candidates)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = l.Label(context.Background(), "Di 06:00 – 08:00", candidates)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLabelBareArrayAndTruncation(t *testing.T) {
	var prompt string
	gen := func(_ context.Context, p string) (string, error) {
		prompt = p
		return `[{"label":"Öffentliches Schwimmen","score":0.4}]`, nil
	}
	l, err := oracle.New("fake", gen, 0, 0)
	require.NoError(t, err)

	labels, err := l.Label(context.Background(), strings.Repeat("ä", 5000), candidates)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "Öffentliches Schwimmen", labels[0].Name)
	assert.Equal(t, 4000, strings.Count(prompt, "ä"))
}

func TestLabelErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	l, err := oracle.New("fake", func(context.Context, string) (string, error) { return "", boom }, 4, 0)
	require.NoError(t, err)
	_, err = l.Label(context.Background(), "x", candidates)
	assert.ErrorIs(t, err, boom)

	l, err = oracle.New("fake", func(context.Context, string) (string, error) { return "not json", nil }, 4, 0)
	require.NoError(t, err)
	_, err = l.Label(context.Background(), "x", candidates)
	assert.ErrorIs(t, err, oracle.ErrInvalidResponse)

	_, err = oracle.New("fake", nil, 4, 0)
	assert.Error(t, err)
}

func TestLabelerDrivesOracleResolver(t *testing.T) {
	l, err := oracle.New("fake", func(context.Context, string) (string, error) {
		return `{"labels":[{"label":"Öffentliches Schwimmen","score":0.3},{"label":"Frühschwimmen","score":0.8}]}`, nil
	}, 4, 0)
	require.NoError(t, err)

	r := schedule.NewOracleResolver(l, candidates, schedule.DefaultCategory)
	res := r.Resolve(context.Background(), "", "Mo 06:00 – 08:00")
	assert.Equal(t, "Frühschwimmen", res.Category)
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.8, *res.Confidence, 1e-9)
}
