package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Bills
// ============================================================

func listBillsHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills")
		defer span.End()

		userID := UserIDFromContext(ctx)
		bills, err := finSvc.ListBills(ctx, userID, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
	}
}

func createBillHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/bills")
		defer span.End()

		var req domain.BillCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		userID := UserIDFromContext(ctx)
		bill, err := finSvc.CreateBill(ctx, userID, &req, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, bill)
	}
}

func getBillHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills/{billId}")
		defer span.End()

		billID := chi.URLParam(r, "billId")
		span.SetAttributes(attribute.String("bill.id", billID))

		userID := UserIDFromContext(ctx)
		bill, err := finSvc.GetBill(ctx, userID, billID, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, bill)
	}
}

func updateBillHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/bills/{billId}")
		defer span.End()

		billID := chi.URLParam(r, "billId")

		var req domain.BillUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		userID := UserIDFromContext(ctx)
		bill, err := finSvc.UpdateBill(ctx, userID, billID, &req, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, bill)
	}
}

func deleteBillHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/bills/{billId}")
		defer span.End()

		billID := chi.URLParam(r, "billId")
		userID := UserIDFromContext(ctx)

		if err := finSvc.DeleteBill(ctx, userID, billID, isDemoRequest(r)); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// billActionHandler covers the status-only lifecycle actions.
func billActionHandler(finSvc *service.FinanceService, logger *zap.Logger, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/bills/{billId}/"+action)
		defer span.End()

		billID := chi.URLParam(r, "billId")
		userID := UserIDFromContext(ctx)
		isDemo := isDemoRequest(r)

		var bill *domain.BillWithStatus
		var err error
		switch action {
		case "pause":
			bill, err = finSvc.PauseBill(ctx, userID, billID, isDemo)
		case "end":
			bill, err = finSvc.EndBill(ctx, userID, billID, isDemo)
		case "resume":
			bill, err = finSvc.ResumeBill(ctx, userID, billID, isDemo)
		case "mark-paid":
			bill, err = finSvc.MarkBillPaid(ctx, userID, billID, isDemo)
		case "unpay":
			bill, err = finSvc.UnmarkBillPaid(ctx, userID, billID, isDemo)
		default:
			writeError(w, http.StatusNotFound, "unknown action")
			return
		}
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, bill)
	}
}

func payBillHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/bills/{billId}/pay")
		defer span.End()

		billID := chi.URLParam(r, "billId")
		userID := UserIDFromContext(ctx)

		// The body is optional; an empty body pays the bill's own amount
		// from its default account.
		var req domain.BillPayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		payment, bill, err := finSvc.PayBill(ctx, userID, billID, &req, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"payment": payment,
			"bill":    bill,
		})
	}
}

func listBillPaymentsHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills/{billId}/payments")
		defer span.End()

		// billId is empty on /v1/payments, which lists across all bills.
		billID := chi.URLParam(r, "billId")
		userID := UserIDFromContext(ctx)
		page, pageSize := parsePagination(r)

		payments, err := finSvc.ListBillPayments(ctx, userID, billID, page, pageSize, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
	}
}
