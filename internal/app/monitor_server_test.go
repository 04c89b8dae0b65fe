package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trades-gate/internal/cost"
	"trades-gate/internal/risk"
)

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestMonitorHandler(t *testing.T) {
	orch := newOfflineOrchestrator(t, testConfig(t), newTestStore(t))
	seedQuote(t, orch)

	srv := httptest.NewServer(newMonitorHandler(orch, zap.NewNop()))
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/evaluate",
		`{"id":"p-42","from_asset":"USDT","to_asset":"BTC","notional_usd":100,"expected_gross_profit_usd":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result risk.EvaluationResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "p-42", result.ProposalID)
	assert.Equal(t, risk.StatusProceed, result.Status)

	resp = postJSON(t, srv.URL+"/settle",
		`{"proposal_id":"p-42","symbol":"BTC/USDT","side":"buy","notional_usd":100,"fee_pct":0.1,"spread_pct":0.02,"slippage_pct":0.01}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sample cost.CostSample
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sample))
	assert.Equal(t, "BTC/USDT", sample.Symbol)
	assert.InDelta(t, 0.13, sample.TotalCostPct, 1e-9)

	assert.Equal(t, http.StatusBadRequest, postJSON(t, srv.URL+"/settle", `{}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, postJSON(t, srv.URL+"/evaluate", `{"unknown":1}`).StatusCode)

	get, err := http.Get(srv.URL + "/events?type=ADMISSION&limit=5")
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)
	var events []map[string]interface{}
	require.NoError(t, json.NewDecoder(get.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, "admission", events[0]["type"])

	bad, err := http.Get(srv.URL + "/events?since=yesterday")
	require.NoError(t, err)
	_ = bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	wrongMethod, err := http.Get(srv.URL + "/evaluate")
	require.NoError(t, err)
	_ = wrongMethod.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, wrongMethod.StatusCode)
}
