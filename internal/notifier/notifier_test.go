package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DCAScanner/internal/model"
)

func TestFormatScanReport(t *testing.T) {
	results := []*model.ScoreResult{
		{Symbol: "BTCUSDT", Market: model.MarketCrypto, Score: 74, Category: model.CategoryStrongDCA, IsDCA: true},
		{Symbol: "ETHUSDT", Market: model.MarketCrypto, Score: 55, Category: model.CategoryDCA, IsDCA: true},
		{Symbol: "A&B", Market: model.MarketUS, Score: 10, Category: model.CategoryNoSignal},
	}
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	msg := FormatScanReport(results, 2, at)
	assert.Contains(t, msg, "2024-06-01 08:00")
	assert.Contains(t, msg, "Scanned 3 symbols, 2 DCA candidates")
	assert.Contains(t, msg, "1. 🟢 <b>BTCUSDT</b>")
	assert.Contains(t, msg, "2. 🟡 <b>ETHUSDT</b>")
	assert.NotContains(t, msg, "A&amp;B")

	all := FormatScanReport(results, 0, at)
	assert.Contains(t, all, "A&amp;B")

	assert.Contains(t, FormatScanReport(nil, 5, at), "No symbols scanned.")
}

func TestFormatScoreDetail(t *testing.T) {
	r := &model.ScoreResult{Symbol: "X", Score: 42, Category: model.CategoryWeakDCA}
	r.Breakdown.RSIRecovery = model.FactorScore{Name: "RSI Recovery", Score: 10, Max: 10, Commentary: "RSI=30"}
	msg := FormatScoreDetail(r)
	assert.Contains(t, msg, "RSI Recovery: 10.0/10 (RSI=30)")
	assert.Equal(t, 12, strings.Count(msg, "\n"), "header, eight factors, targets")
}

func TestFormatPositionsAndSummary(t *testing.T) {
	price := 220.0
	positions := []model.Position{
		{Symbol: "BTCUSDT", TotalQuantity: 15, AvgPrice: 150, TotalCost: 2250, RealizedCapital: 1500, RealizedProfitLoss: 750, CurrentPrice: &price},
		{Symbol: "SOL", TotalQuantity: -1, Condition: model.ConditionOversold},
	}
	msg := FormatPositions("alice_001", positions)
	assert.Contains(t, msg, "<b>BTCUSDT</b> qty 15 @ 150 = 2250.00 | now 220")
	assert.Contains(t, msg, "realized 1500.00 (P/L +750.00)")
	assert.Contains(t, msg, "sells exceed buys")
	assert.Contains(t, FormatPositions("x", nil), "No transactions.")

	sum := FormatSummary("alice_001", model.PortfolioSummary{
		TotalTransactions: 3, ActivePositions: 2, TotalInvestment: 5000,
		TotalCurrentValue: 5100, TotalProfitLoss: 100, TotalProfitLossPercent: 2,
	})
	assert.Contains(t, sum, "Active positions: 2")
	assert.Contains(t, sum, "P/L: +100.00 (+2.00%)")
}

func TestTelegramNotifier_SendWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		assert.Equal(t, "HTML", payload["parse_mode"])

		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"ok":false,"description":"Too Many Requests"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIURL = srv.URL
	n.Backoff = time.Millisecond

	require.NoError(t, n.SendWithRetry(context.Background(), "hello", 2))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTelegramNotifier_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIURL = srv.URL
	n.Backoff = time.Millisecond

	err := n.SendWithRetry(context.Background(), "hello", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 retries exhausted")
}

func TestTelegramNotifier_BadRequestIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: can't parse entities"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIURL = srv.URL
	n.Backoff = time.Millisecond

	err := n.SendWithRetry(context.Background(), "<b>broken", 3)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Description, "can't parse entities")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTelegramNotifier_SplitsLongMessages(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		mu.Lock()
		texts = append(texts, payload["text"])
		mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIURL = srv.URL

	line := strings.Repeat("x", 99)
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = line
	}
	require.NoError(t, n.Send(strings.Join(lines, "\n")))

	require.Len(t, texts, 3)
	total := 0
	for _, txt := range texts {
		assert.LessOrEqual(t, len(txt), MaxMessageLen)
		assert.False(t, strings.HasPrefix(txt, "\n"))
		total += strings.Count(txt, line)
	}
	assert.Equal(t, 100, total)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{""}, splitMessage("", 10))
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"abcd", "efgh"}, splitMessage("abcd\nefgh", 6))
	assert.Equal(t, []string{"abcdef", "gh"}, splitMessage("abcdefgh", 6))
	assert.Equal(t, []string{"çççç", "çç"}, splitMessage("çççççç", 4))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
		ok   bool
	}{
		{"/scan", Command{Name: "scan", Args: []string{}}, true},
		{"  /Score@DcaScannerBot btcusdt ", Command{Name: "score", Args: []string{"btcusdt"}}, true},
		{"/note abc buy the dip", Command{Name: "note", Args: []string{"abc", "buy", "the", "dip"}}, true},
		{"hello", Command{}, false},
		{"/", Command{}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}

	cmd, _ := ParseCommand("/note abc buy the dip")
	assert.Equal(t, "abc", cmd.Arg(0))
	assert.Equal(t, "", cmd.Arg(9))
	assert.Equal(t, "buy the dip", cmd.Rest(1))
	assert.Equal(t, "", cmd.Rest(5))
}

// pollServer serves queued getUpdates bodies, then blocks until the client gives up.
type pollServer struct {
	mu      sync.Mutex
	updates []string
	offsets []int
	replies []map[string]string
	onReply func()
}

func (p *pollServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		var payload struct {
			Offset int `json:"offset"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		p.mu.Lock()
		p.offsets = append(p.offsets, payload.Offset)
		if len(p.updates) == 0 {
			p.mu.Unlock()
			<-r.Context().Done()
			return
		}
		body := p.updates[0]
		p.updates = p.updates[1:]
		p.mu.Unlock()
		if body == "" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(body))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		p.mu.Lock()
		p.replies = append(p.replies, payload)
		p.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
		if p.onReply != nil {
			p.onReply()
		}
	}
}

func runPolling(t *testing.T, ctx context.Context, n *TelegramNotifier, handler CommandHandler) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, handler)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
}

func TestTelegramNotifier_PollingRoutesAuthorizedCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ps := &pollServer{
		updates: []string{`{"ok":true,"result":[
			{"update_id":7,"message":{"text":"/scan","chat":{"id":99},"from":{"username":"mallory"}}},
			{"update_id":8,"message":{"text":"just chatting","chat":{"id":42}}},
			{"update_id":9,"message":{"text":" /Score@DcaBot btcusdt ","chat":{"id":42},"from":{"username":"alice"}}}
		]}`},
		onReply: cancel,
	}
	srv := httptest.NewServer(ps)
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIURL = srv.URL

	var got []Command
	runPolling(t, ctx, n, func(_ context.Context, cmd Command) string {
		got = append(got, cmd)
		return "score for " + cmd.Arg(0)
	})

	require.Len(t, got, 1)
	assert.Equal(t, Command{Name: "score", Args: []string{"btcusdt"}, ChatID: "42", From: "alice"}, got[0])

	ps.mu.Lock()
	defer ps.mu.Unlock()
	require.Len(t, ps.replies, 1)
	assert.Equal(t, "42", ps.replies[0]["chat_id"])
	assert.Equal(t, "score for btcusdt", ps.replies[0]["text"])
	assert.Equal(t, 0, ps.offsets[0])
}

func TestTelegramNotifier_PollingBacksOffAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ps := &pollServer{
		updates: []string{"", `{"ok":true,"result":[{"update_id":3,"message":{"text":"/scan","chat":{"id":42}}}]}`},
		onReply: cancel,
	}
	srv := httptest.NewServer(ps)
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIURL = srv.URL
	n.PollBackoff = time.Millisecond

	runPolling(t, ctx, n, func(_ context.Context, cmd Command) string { return "ok" })

	ps.mu.Lock()
	defer ps.mu.Unlock()
	assert.Len(t, ps.replies, 1)
	assert.Equal(t, []int{0, 0}, ps.offsets[:2])
}

func TestTelegramNotifier_PollingBackoffHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		cancel()
	}))
	defer srv.Close()

	n := NewTelegramNotifier("TOKEN", "42", "")
	n.APIURL = srv.URL
	n.PollBackoff = time.Hour

	start := time.Now()
	runPolling(t, ctx, n, func(context.Context, Command) string { return "" })
	assert.Less(t, time.Since(start), time.Minute)
}
