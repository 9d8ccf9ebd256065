package lottery_api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lottery/internal/auth"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/lottery"
	"ms-lottery/internal/lottery_api"
	"ms-lottery/internal/models"
)

// noopNotifier satisfies the gateway boundary without any backing transport.
type noopNotifier struct{}

func (noopNotifier) LotteryPosted(models.LotterySummary) error              { return nil }
func (noopNotifier) TicketsSold(string, int) error                          { return nil }
func (noopNotifier) LotteryFinalized(models.Outcome) error                  { return nil }
func (noopNotifier) TicketsPurchasedPrivate(string, string, []string) error { return nil }

type fakeStats struct {
	stats models.ArchiveStats
}

func (f fakeStats) Stats() (models.ArchiveStats, error) { return f.stats, nil }

func newTestRouter(t *testing.T) (*chi.Mux, *lottery.Service) {
	t.Helper()

	store := lottery.NewStore(filepath.Join(t.TempDir(), "lotteries.json"), &logger.Logger{})
	store.Load()
	svc := lottery.NewService(store, noopNotifier{}, nil, &logger.Logger{})
	t.Cleanup(svc.Drain)

	h := lottery_api.NewHandler(svc, fakeStats{stats: models.ArchiveStats{LotteriesSettled: 7, TicketsSold: 42, NoSales: 1}}, &logger.Logger{}, "lottery-admin")

	r := chi.NewRouter()
	r.Get("/api/lottery/stats", h.Stats)
	r.Get("/api/lottery/tickets/{code}/qr", h.TicketQR)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(""))
		r.Route("/api/lottery", func(r chi.Router) {
			r.Post("/", h.CreateLottery)
			r.Get("/", h.ListActive)
			r.Get("/mine", h.MyTickets)
			r.Post("/{lotteryId}/tickets", h.BuyTickets)
			r.Post("/{lotteryId}/finalize", h.ForceFinalize)
		})
	})
	return r, svc
}

// signToken mints a token for the unverified local-development auth path.
func signToken(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub}
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createLottery(t *testing.T, router http.Handler, token string, req models.CreateLotteryRequest) models.Lottery {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/lottery", token, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var lot models.Lottery
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&lot))
	return lot
}

func TestCreateLotteryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	token := signToken(t, "seller-1")

	lot := createLottery(t, router, token, models.CreateLotteryRequest{
		Item:        "Enchanted Sword",
		Duration:    "10m",
		TicketPrice: "5 coins",
	})

	assert.NotEmpty(t, lot.ID)
	assert.Equal(t, "seller-1", lot.SellerID)
	assert.Equal(t, models.StateOpen, lot.State)
}

func TestCreateLotteryRejectsBadDuration(t *testing.T) {
	router, _ := newTestRouter(t)
	token := signToken(t, "seller-1")

	rec := doJSON(t, router, http.MethodPost, "/api/lottery", token, models.CreateLotteryRequest{
		Item:     "Sword",
		Duration: "soon",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/lottery", "", models.CreateLotteryRequest{Item: "Sword", Duration: "1h"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuyTicketsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	lot := createLottery(t, router, signToken(t, "seller-1"), models.CreateLotteryRequest{Item: "Sword", Duration: "1h"})

	rec := doJSON(t, router, http.MethodPost, "/api/lottery/"+lot.ID+"/tickets", signToken(t, "alice"), models.BuyTicketsRequest{Count: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.BuyTicketsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, lot.ID, resp.LotteryID)
	assert.Equal(t, "Sword", resp.Item)
	assert.Len(t, resp.Codes, 3)
	assert.Equal(t, 3, resp.Sold)
	assert.Empty(t, resp.Warning)
}

func TestBuyTicketsUnknownLottery(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/lottery/no-such-id/tickets", signToken(t, "alice"), models.BuyTicketsRequest{Count: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuyTicketsOverCapacity(t *testing.T) {
	router, _ := newTestRouter(t)
	max := 2
	lot := createLottery(t, router, signToken(t, "seller-1"), models.CreateLotteryRequest{Item: "Sword", Duration: "1h", MaxTickets: &max})

	rec := doJSON(t, router, http.MethodPost, "/api/lottery/"+lot.ID+"/tickets", signToken(t, "alice"), models.BuyTicketsRequest{Count: 5})
	require.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(2), body["remaining"])
}

func TestForceFinalizeRequiresAdminRole(t *testing.T) {
	router, svc := newTestRouter(t)
	lot := createLottery(t, router, signToken(t, "seller-1"), models.CreateLotteryRequest{Item: "Sword", Duration: "1h"})

	rec := doJSON(t, router, http.MethodPost, "/api/lottery/"+lot.ID+"/finalize", signToken(t, "mallory"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Still running after the denied attempt.
	_, err := svc.Store.Get(lot.ID)
	assert.NoError(t, err)

	rec = doJSON(t, router, http.MethodPost, "/api/lottery/"+lot.ID+"/finalize", signToken(t, "admin-1", "lottery-admin"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var outcome models.Outcome
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&outcome))
	assert.Equal(t, lot.ID, outcome.LotteryID)
	assert.True(t, outcome.NoSale())

	// Second trigger finds nothing to settle.
	rec = doJSON(t, router, http.MethodPost, "/api/lottery/"+lot.ID+"/finalize", signToken(t, "admin-1", "lottery-admin"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListActiveEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	token := signToken(t, "seller-1")
	createLottery(t, router, token, models.CreateLotteryRequest{Item: "Sword", Duration: "1h"})
	createLottery(t, router, token, models.CreateLotteryRequest{Item: "Shield", Duration: "2h"})

	rec := doJSON(t, router, http.MethodGet, "/api/lottery", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summaries []models.LotterySummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summaries))
	assert.Len(t, summaries, 2)
}

func TestMyTicketsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	lot := createLottery(t, router, signToken(t, "seller-1"), models.CreateLotteryRequest{Item: "Sword", Duration: "1h"})

	doJSON(t, router, http.MethodPost, "/api/lottery/"+lot.ID+"/tickets", signToken(t, "alice"), models.BuyTicketsRequest{Count: 2})

	rec := doJSON(t, router, http.MethodGet, "/api/lottery/mine", signToken(t, "alice"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var mine models.UserTickets
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&mine))
	assert.Equal(t, "alice", mine.UserID)
	assert.Len(t, mine.Tickets["Sword"], 2)
}

func TestTicketQREndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/lottery/tickets/ABCD1234/qr", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestStatsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/lottery/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.ArchiveStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, 7, stats.LotteriesSettled)
	assert.Equal(t, 42, stats.TicketsSold)
}
