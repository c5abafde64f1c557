package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/cloudwalk/yield-streamer/internal/errors"
	"github.com/cloudwalk/yield-streamer/internal/types"
)

const (
	testAddress  = "0x00000000000000000000000000000000000000a1"
	testAdminKey = "test-admin-key"
)

// mockYieldService implements YieldServiceInterface for handler tests.
type mockYieldService struct {
	claimErr   error
	rateErr    error
	rates      []types.YieldRateRecord
	lookBacks  []types.LookBackRecord
	lastAmount *big.Int
}

func fixedPreview() types.ClaimPreview {
	return types.ClaimPreview{
		NextClaimDay:   105,
		NextClaimDebit: big.NewInt(52),
		FirstYieldDay:  100,
		PrimaryYield:   big.NewInt(615),
		StreamYield:    big.NewInt(52),
		LastDayYield:   big.NewInt(105),
		Shortfall:      new(big.Int),
		Fee:            big.NewInt(146),
	}
}

func (m *mockYieldService) GetClaimPreview(_ context.Context, account string, amount *big.Int) (types.ClaimPreview, error) {
	if !common.IsHexAddress(account) {
		return types.ClaimPreview{}, apperrors.NewInvalidAddressError(account)
	}
	m.lastAmount = amount
	return fixedPreview(), nil
}

func (m *mockYieldService) GetClaimAllPreview(ctx context.Context, account string) (types.ClaimPreview, error) {
	return m.GetClaimPreview(ctx, account, nil)
}

func (m *mockYieldService) ExecuteClaim(_ context.Context, account string, amount *big.Int) (types.ClaimResult, error) {
	if m.claimErr != nil {
		return types.ClaimResult{}, m.claimErr
	}
	m.lastAmount = amount
	return types.ClaimResult{
		Account:  common.HexToAddress(account),
		Claimed:  big.NewInt(667),
		Credited: big.NewInt(521),
		Fee:      big.NewInt(146),
		Preview:  fixedPreview(),
	}, nil
}

func (m *mockYieldService) GetLastClaim(_ context.Context, _ string) (types.ClaimState, error) {
	return types.ClaimState{Day: 105, Debit: big.NewInt(52)}, nil
}

func (m *mockYieldService) GetDailyBalances(_ context.Context, _ string, fromDay, toDay types.Day) ([]*big.Int, error) {
	out := make([]*big.Int, toDay-fromDay+1)
	for i := range out {
		out[i] = big.NewInt(10000)
	}
	return out, nil
}

func (m *mockYieldService) GetYieldByDays(_ context.Context, _ string, fromDay, toDay types.Day) ([]*big.Int, error) {
	out := make([]*big.Int, toDay-fromDay+1)
	for i := range out {
		out[i] = big.NewInt(100)
	}
	return out, nil
}

func (m *mockYieldService) ConfigureYieldRate(_ context.Context, effectiveDay types.Day, rate *big.Int) error {
	if m.rateErr != nil {
		return m.rateErr
	}
	m.rates = append(m.rates, types.YieldRateRecord{EffectiveDay: effectiveDay, Rate: rate})
	return nil
}

func (m *mockYieldService) ConfigureLookBackPeriod(_ context.Context, effectiveDay types.Day, length uint64) error {
	m.lookBacks = append(m.lookBacks, types.LookBackRecord{EffectiveDay: effectiveDay, Length: length})
	return nil
}

func (m *mockYieldService) SetFeeReceiver(_ context.Context, receiver string) error {
	if !common.IsHexAddress(receiver) {
		return apperrors.NewInvalidAddressError(receiver)
	}
	return nil
}

func (m *mockYieldService) Schedule() ([]types.YieldRateRecord, []types.LookBackRecord) {
	return m.rates, m.lookBacks
}

func (m *mockYieldService) CurrentDay() (types.Day, types.Day, error) {
	return 106, 100, nil
}

func newTestServer(svc *mockYieldService) *Server {
	return NewServer(&ServerConfig{
		Host:           "localhost",
		Port:           "0",
		AdminKey:       testAdminKey,
		FreeTierRPS:    100,
		BasicTierRPS:   100,
		PremiumTierRPS: 100,
	}, svc)
}

func doRequest(s *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleClaim_All(t *testing.T) {
	svc := &mockYieldService{}
	s := newTestServer(svc)

	rec := doRequest(s, "POST", "/api/accounts/"+testAddress+"/claims", ClaimRequest{Amount: "all"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "667", resp.Claimed)
	assert.Equal(t, "521", resp.Credited)
	assert.Equal(t, "146", resp.Fee)
	assert.Equal(t, uint64(105), resp.NextClaimDay)
	assert.Nil(t, svc.lastAmount, "\"all\" must reach the service as a nil amount")
}

func TestHandleClaim_FixedAmount(t *testing.T) {
	svc := &mockYieldService{}
	s := newTestServer(svc)

	rec := doRequest(s, "POST", "/api/accounts/"+testAddress+"/claims", ClaimRequest{Amount: "150"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastAmount)
	assert.Equal(t, "150", svc.lastAmount.String())
}

func TestHandleClaim_EmptyBodyClaimsAll(t *testing.T) {
	svc := &mockYieldService{}
	s := newTestServer(svc)

	req := httptest.NewRequest("POST", "/api/accounts/"+testAddress+"/claims", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastAmount)
}

func TestHandleClaim_InvalidAmount(t *testing.T) {
	s := newTestServer(&mockYieldService{})

	rec := doRequest(s, "POST", "/api/accounts/"+testAddress+"/claims", ClaimRequest{Amount: "not-a-number"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
}

func TestHandleClaim_Shortfall(t *testing.T) {
	svc := &mockYieldService{claimErr: apperrors.NewShortfallError(testAddress, big.NewInt(1))}
	s := newTestServer(svc)

	rec := doRequest(s, "POST", "/api/accounts/"+testAddress+"/claims", ClaimRequest{Amount: "668"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SHORTFALL", resp.Error.Code)
}

func TestHandleClaimPreview(t *testing.T) {
	svc := &mockYieldService{}
	s := newTestServer(svc)

	rec := doRequest(s, "GET", "/api/accounts/"+testAddress+"/claim-preview?amount=150", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "615", resp.PrimaryYield)
	assert.Equal(t, "52", resp.StreamYield)
	require.NotNil(t, svc.lastAmount)
	assert.Equal(t, "150", svc.lastAmount.String())
}

func TestHandleClaimPreview_InvalidAddress(t *testing.T) {
	s := newTestServer(&mockYieldService{})

	rec := doRequest(s, "GET", "/api/accounts/zzz/claim-preview", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLastClaim(t *testing.T) {
	s := newTestServer(&mockYieldService{})

	rec := doRequest(s, "GET", "/api/accounts/"+testAddress+"/last-claim", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LastClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(105), resp.Day)
	assert.Equal(t, "52", resp.Debit)
}

func TestHandleDailyBalances(t *testing.T) {
	s := newTestServer(&mockYieldService{})

	rec := doRequest(s, "GET", "/api/accounts/"+testAddress+"/daily-balances?fromDay=100&toDay=104", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DayRangeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(100), resp.FromDay)
	assert.Len(t, resp.Values, 5)
}

func TestHandleDailyBalances_BadRange(t *testing.T) {
	s := newTestServer(&mockYieldService{})

	for _, query := range []string{
		"",
		"?fromDay=100",
		"?fromDay=abc&toDay=104",
		"?fromDay=105&toDay=104",
		"?fromDay=0&toDay=5000",
	} {
		rec := doRequest(s, "GET", "/api/accounts/"+testAddress+"/daily-balances"+query, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", query)
	}
}

func TestAdminEndpoints_RequireKey(t *testing.T) {
	s := newTestServer(&mockYieldService{})

	rec := doRequest(s, "POST", "/api/admin/yield-rates", YieldRateRequest{EffectiveDay: 100, Rate: "10000000000"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, "POST", "/api/admin/yield-rates", YieldRateRequest{EffectiveDay: 100, Rate: "10000000000"},
		map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminConfigureYieldRate(t *testing.T) {
	svc := &mockYieldService{}
	s := newTestServer(svc)

	rec := doRequest(s, "POST", "/api/admin/yield-rates", YieldRateRequest{EffectiveDay: 100, Rate: "10000000000"},
		map[string]string{"X-Admin-Key": testAdminKey})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, svc.rates, 1)
	assert.Equal(t, types.Day(100), svc.rates[0].EffectiveDay)
}

func TestAdminConfigureYieldRate_NotMonotonic(t *testing.T) {
	svc := &mockYieldService{rateErr: apperrors.NewScheduleNotMonotonicError("yield rate", 40, 50)}
	s := newTestServer(svc)

	rec := doRequest(s, "POST", "/api/admin/yield-rates", YieldRateRequest{EffectiveDay: 40, Rate: "1"},
		map[string]string{"X-Admin-Key": testAdminKey})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SCHEDULE_NOT_MONOTONIC", resp.Error.Code)
}

func TestAdminGetSchedule(t *testing.T) {
	svc := &mockYieldService{
		rates:     []types.YieldRateRecord{{EffectiveDay: 100, Rate: big.NewInt(10_000_000_000)}},
		lookBacks: []types.LookBackRecord{{EffectiveDay: 102, Length: 3}},
	}
	s := newTestServer(svc)

	rec := doRequest(s, "GET", "/api/admin/schedule", nil, map[string]string{"X-Admin-Key": testAdminKey})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.YieldRates, 1)
	assert.Equal(t, "10000000000", resp.YieldRates[0].Rate)
	require.Len(t, resp.LookBackPeriods, 1)
	assert.Equal(t, uint64(3), resp.LookBackPeriods[0].Length)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&mockYieldService{})

	rec := doRequest(s, "GET", "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, float64(106), resp["currentDay"])
}
