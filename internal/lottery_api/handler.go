package lottery_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"ms-lottery/internal/auth"
	"ms-lottery/internal/logger"
	"ms-lottery/internal/lottery"
	"ms-lottery/internal/models"
)

// StatsProvider is the archive boundary used by the stats endpoint.
type StatsProvider interface {
	Stats() (models.ArchiveStats, error)
}

type Handler struct {
	Service   *lottery.Service
	Archive   StatsProvider
	Logger    *logger.Logger
	AdminRole string
}

func NewHandler(service *lottery.Service, archive StatsProvider, log *logger.Logger, adminRole string) *Handler {
	return &Handler{
		Service:   service,
		Archive:   archive,
		Logger:    log,
		AdminRole: adminRole,
	}
}

// CreateLottery handles POST /api/lottery
func (h *Handler) CreateLottery(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLotteryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sellerID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CreateLottery: item=%q seller=%s", req.Item, sellerID))

	lot, err := h.Service.CreateLottery(req, sellerID)
	if err != nil {
		h.writeServiceError(w, "CreateLottery", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(lot); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateLottery: failed to encode response: %v", err))
	}
}

// BuyTickets handles POST /api/lottery/{lotteryId}/tickets
func (h *Handler) BuyTickets(w http.ResponseWriter, r *http.Request) {
	lotteryID := chi.URLParam(r, "lotteryId")
	buyerID := auth.UserID(r.Context())

	var req models.BuyTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("BuyTickets: lottery=%s buyer=%s count=%d", lotteryID, buyerID, req.Count))

	purchase, err := h.Service.BuyTickets(lotteryID, buyerID, req.Count)
	if err != nil {
		h.writeServiceError(w, "BuyTickets", err)
		return
	}

	codes := make([]string, len(purchase.Issued))
	for i, t := range purchase.Issued {
		codes[i] = t.Code
	}

	// Purchase-time state: the lottery may have been finalized since.
	resp := models.BuyTicketsResponse{
		LotteryID: lotteryID,
		Item:      purchase.Lottery.Item,
		Codes:     codes,
		Sold:      len(purchase.Lottery.Tickets),
		Warning:   purchase.Warning,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("API", fmt.Sprintf("BuyTickets: failed to encode response: %v", err))
	}
}

// ForceFinalize handles POST /api/lottery/{lotteryId}/finalize
func (h *Handler) ForceFinalize(w http.ResponseWriter, r *http.Request) {
	lotteryID := chi.URLParam(r, "lotteryId")
	requesterID := auth.UserID(r.Context())

	admin := false
	if token, err := auth.ExtractTokenFromRequest(r); err == nil {
		admin = auth.HasRole(token, h.AdminRole)
	}

	h.Logger.Info("API", fmt.Sprintf("ForceFinalize: lottery=%s requester=%s admin=%v", lotteryID, requesterID, admin))

	outcome, err := h.Service.ForceFinalize(lotteryID, requesterID, admin)
	if err != nil {
		h.writeServiceError(w, "ForceFinalize", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ForceFinalize: failed to encode response: %v", err))
	}
}

// ListActive handles GET /api/lottery
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	summaries := h.Service.ListActive()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListActive: failed to encode response: %v", err))
	}
}

// MyTickets handles GET /api/lottery/mine
func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	result := h.Service.TicketsForUser(userID)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.Logger.Error("API", fmt.Sprintf("MyTickets: failed to encode response: %v", err))
	}
}

// TicketQR handles GET /api/lottery/tickets/{code}/qr and renders the ticket
// code as a PNG for support scanning.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		http.Error(w, "ticket code is required", http.StatusBadRequest)
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("TicketQR: failed to encode QR: %v", err))
		http.Error(w, "failed to generate QR", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// Stats handles GET /api/lottery/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		http.Error(w, "archive not configured", http.StatusServiceUnavailable)
		return
	}
	stats, err := h.Archive.Stats()
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Stats: %v", err))
		http.Error(w, "failed to read archive stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Stats: failed to encode response: %v", err))
	}
}

// writeServiceError maps engine errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var validationErr *lottery.ValidationError
	var capacityErr *lottery.CapacityError
	var persistenceErr *lottery.PersistenceError

	switch {
	case errors.As(err, &validationErr):
		http.Error(w, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &capacityErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":     capacityErr.Error(),
			"remaining": capacityErr.Remaining,
		})
	case errors.Is(err, lottery.ErrNotFound), errors.Is(err, lottery.ErrAlreadyFinalized):
		http.Error(w, "Lottery not found or already finalized", http.StatusNotFound)
	case errors.Is(err, lottery.ErrClosed):
		http.Error(w, "Lottery is closed for purchases", http.StatusGone)
	case errors.Is(err, lottery.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.As(err, &persistenceErr):
		h.Logger.Error("API", fmt.Sprintf("%s: persistence failure: %v", op, err))
		http.Error(w, "Persistence failure, request aborted", http.StatusInternalServerError)
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
