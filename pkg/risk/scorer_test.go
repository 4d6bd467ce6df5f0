package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/sessionguard/pkg/risk"
)

// noon is safely inside the default 08:00-18:00 business window.
var noon = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func TestScorer_Score(t *testing.T) {
	scorer := risk.NewScorer()

	t.Run("no signals yields zero", func(t *testing.T) {
		score := scorer.Score(risk.Signals{Now: noon})
		assert.Equal(t, 0, score)
	})

	t.Run("ip change", func(t *testing.T) {
		score := scorer.Score(risk.Signals{
			StoredIP:  "192.0.2.1",
			CurrentIP: "198.51.100.7",
			Now:       noon,
		})
		assert.Equal(t, risk.WeightIPChange, score)
	})

	t.Run("unchanged ip contributes nothing", func(t *testing.T) {
		score := scorer.Score(risk.Signals{
			StoredIP:  "192.0.2.1",
			CurrentIP: "192.0.2.1",
			Now:       noon,
		})
		assert.Equal(t, 0, score)
	})

	t.Run("user agent change", func(t *testing.T) {
		score := scorer.Score(risk.Signals{
			StoredUserAgent:  "Mozilla/5.0",
			CurrentUserAgent: "curl/8.5.0",
			Now:              noon,
		})
		assert.Equal(t, risk.WeightUserAgentChange, score)
	})

	t.Run("privilege escalation", func(t *testing.T) {
		score := scorer.Score(risk.Signals{PrivilegeEscalation: true, Now: noon})
		assert.Equal(t, risk.WeightPrivilegeEscalation, score)
	})

	t.Run("suspicious activity", func(t *testing.T) {
		score := scorer.Score(risk.Signals{SuspiciousActivity: true, Now: noon})
		assert.Equal(t, risk.WeightSuspiciousActivity, score)
	})

	t.Run("off hours access", func(t *testing.T) {
		midnight := time.Date(2025, 6, 2, 0, 30, 0, 0, time.UTC)
		score := scorer.Score(risk.Signals{Now: midnight})
		assert.Equal(t, risk.WeightOffHours, score)
	})

	t.Run("unfamiliar location", func(t *testing.T) {
		unfamiliar := true
		score := scorer.Score(risk.Signals{UnfamiliarLocation: &unfamiliar, Now: noon})
		assert.Equal(t, risk.WeightUnfamiliarLocation, score)
	})

	t.Run("absent location signal contributes zero", func(t *testing.T) {
		familiar := false
		assert.Equal(t, 0, scorer.Score(risk.Signals{UnfamiliarLocation: nil, Now: noon}))
		assert.Equal(t, 0, scorer.Score(risk.Signals{UnfamiliarLocation: &familiar, Now: noon}))
	})

	t.Run("burst requests", func(t *testing.T) {
		score := scorer.Score(risk.Signals{
			Now:           noon,
			LastRequestAt: noon.Add(-200 * time.Millisecond),
		})
		assert.Equal(t, risk.WeightBurst, score)
	})

	t.Run("slow requests are not bursts", func(t *testing.T) {
		score := scorer.Score(risk.Signals{
			Now:           noon,
			LastRequestAt: noon.Add(-5 * time.Second),
		})
		assert.Equal(t, 0, score)
	})

	t.Run("factors are additive", func(t *testing.T) {
		// IP change (3) + UA change (4) + burst (2) + off-hours (2) = 11
		midnight := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)
		score := scorer.Score(risk.Signals{
			StoredIP:         "192.0.2.1",
			CurrentIP:        "198.51.100.7",
			StoredUserAgent:  "Mozilla/5.0",
			CurrentUserAgent: "curl/8.5.0",
			Now:              midnight,
			LastRequestAt:    midnight.Add(-200 * time.Millisecond),
		})
		assert.Equal(t, 11, score)
	})

	t.Run("score is clamped to max", func(t *testing.T) {
		unfamiliar := true
		midnight := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)
		score := scorer.Score(risk.Signals{
			StoredIP:            "192.0.2.1",
			CurrentIP:           "198.51.100.7",
			StoredUserAgent:     "Mozilla/5.0",
			CurrentUserAgent:    "curl/8.5.0",
			PrivilegeEscalation: true,
			SuspiciousActivity:  true,
			UnfamiliarLocation:  &unfamiliar,
			Now:                 midnight,
			LastRequestAt:       midnight.Add(-100 * time.Millisecond),
		})
		assert.Equal(t, risk.MaxScore, score)
	})
}

func TestScorer_BusinessHours(t *testing.T) {
	scorer := risk.NewScorer(risk.WithBusinessHours(9, 17))

	t.Run("window start is inclusive", func(t *testing.T) {
		nine := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, 0, scorer.Score(risk.Signals{Now: nine}))
	})

	t.Run("window end is exclusive", func(t *testing.T) {
		five := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)
		assert.Equal(t, risk.WeightOffHours, scorer.Score(risk.Signals{Now: five}))
	})
}
