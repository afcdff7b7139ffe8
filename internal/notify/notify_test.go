package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkorolev/statarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureSender records delivered messages and optionally fails.
type captureSender struct {
	name string
	fail error
	got  []Message
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	if c.fail != nil {
		return c.fail
	}
	c.got = append(c.got, msg)
	return nil
}

func (c *captureSender) Name() string { return c.name }

func TestNotifierEventFilter(t *testing.T) {
	sender := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{sender}, []string{EventRunFailed}, testLogger())

	require.NoError(t, n.ScreenComplete(context.Background(), "r1", nil))
	require.NoError(t, n.RunFailed(context.Background(), "screen", errors.New("boom")))

	require.Len(t, sender.got, 1)
	assert.Equal(t, EventRunFailed, sender.got[0].Event)
	assert.Contains(t, sender.got[0].Body, "mode screen")
}

func TestNotifierEmptyFilterAdmitsAll(t *testing.T) {
	sender := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	candidates := []domain.PairCandidate{
		{InstrumentA: "cu_a", InstrumentB: "cu_b", Correlation: 0.91, PValue: 0.012},
	}
	require.NoError(t, n.ScreenComplete(context.Background(), "r2", candidates))

	require.Len(t, sender.got, 1)
	assert.Equal(t, "Screening complete", sender.got[0].Title)
	assert.Contains(t, sender.got[0].Body, "cu_a/cu_b")
	assert.Contains(t, sender.got[0].Body, "1 candidate pairs")
}

func TestNotifierBacktestRendersUndefinedStats(t *testing.T) {
	sender := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{sender}, nil, testLogger())

	run := domain.BacktestRun{
		RunID:       "r3",
		InstrumentA: "cu_a",
		InstrumentB: "cu_b",
		Summary: domain.Summary{
			TotalTrades: 0,
			WinRate:     math.NaN(),
			Sharpe:      math.NaN(),
		},
	}
	require.NoError(t, n.BacktestComplete(context.Background(), run))

	require.Len(t, sender.got, 1)
	assert.Equal(t, EventBacktestComplete, sender.got[0].Event)
	assert.Contains(t, sender.got[0].Body, "win rate n/a")
	assert.Contains(t, sender.got[0].Body, "sharpe n/a")
}

func TestNotifierCollectsSenderFailures(t *testing.T) {
	bad := &captureSender{name: "bad", fail: errors.New("unreachable")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.RunFailed(context.Background(), "full", errors.New("boom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 sender(s) failed")
	// The failing channel does not block the healthy one.
	assert.Len(t, good.got, 1)
}

func TestTelegramSenderPostsSendMessage(t *testing.T) {
	var gotPath string
	var gotReq telegramRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok123", "chat42")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), Message{
		Event: EventScreenComplete,
		Title: "Screening complete",
		Body:  "run r1: no pairs passed the gates",
	})
	require.NoError(t, err)

	assert.Equal(t, "/bottok123/sendMessage", gotPath)
	assert.Equal(t, "chat42", gotReq.ChatID)
	assert.Equal(t, "Markdown", gotReq.ParseMode)
	assert.Contains(t, gotReq.Text, "*Screening complete*")
}

func TestTelegramSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"ok":false,"description":"bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "chat")
	s.baseURL = srv.URL

	err := s.Send(context.Background(), Message{Event: EventRunFailed, Title: "t", Body: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "bad token")
}

func TestDiscordSenderPostsEmbed(t *testing.T) {
	var gotReq discordRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordSender(srv.URL)

	err := s.Send(context.Background(), Message{
		Event: EventRunFailed,
		Title: "Pipeline run failed",
		Body:  "mode full: boom",
	})
	require.NoError(t, err)

	require.Len(t, gotReq.Embeds, 1)
	assert.Equal(t, "Pipeline run failed", gotReq.Embeds[0].Title)
	assert.Equal(t, "mode full: boom", gotReq.Embeds[0].Description)
	assert.Equal(t, discordColorFail, gotReq.Embeds[0].Color)
}
