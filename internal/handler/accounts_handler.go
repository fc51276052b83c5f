package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/domain"
	"github.com/dhruvpathak9305/OctopusFinanceAiAdvisor-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Accounts
// ============================================================

func listAccountsHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts")
		defer span.End()

		userID := UserIDFromContext(ctx)
		overview, err := finSvc.FetchAccountsWithBalances(ctx, userID, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func createAccountHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts")
		defer span.End()

		var req domain.AccountCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		userID := UserIDFromContext(ctx)
		acct, err := finSvc.CreateAccount(ctx, userID, &req, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, acct)
	}
}

func getAccountHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		span.SetAttributes(attribute.String("account.id", accountID))

		userID := UserIDFromContext(ctx)
		acct, err := finSvc.GetAccountWithBalance(ctx, userID, accountID, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func updateAccountHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/accounts/{accountId}")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")

		var req domain.AccountUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		userID := UserIDFromContext(ctx)
		acct, err := finSvc.UpdateAccount(ctx, userID, accountID, &req, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func deleteAccountHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/accounts/{accountId}")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		userID := UserIDFromContext(ctx)

		soft, err := finSvc.DeleteAccount(ctx, userID, accountID, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if soft {
			writeJSON(w, http.StatusOK, map[string]any{
				"deleted":      true,
				"soft_deleted": true,
			})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func accountSummaryHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/summary")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		userID := UserIDFromContext(ctx)

		summary, err := finSvc.GetAccountSummary(ctx, userID, accountID, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func accountBalanceHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/balance")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		userID := UserIDFromContext(ctx)

		var asOf *time.Time
		if v := r.URL.Query().Get("as_of"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
				return
			}
			// Include the whole requested day.
			t = t.AddDate(0, 0, 1).Add(-time.Second)
			asOf = &t
		}

		balance, err := finSvc.GetAccountBalance(ctx, userID, accountID, asOf, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		resp := map[string]any{
			"account_id": accountID,
			"balance":    balance,
		}
		if asOf != nil {
			resp["as_of"] = r.URL.Query().Get("as_of")
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func accountHistoryHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountId}/history")
		defer span.End()

		accountID := chi.URLParam(r, "accountId")
		userID := UserIDFromContext(ctx)

		months := 6
		if v := r.URL.Query().Get("months"); v != "" {
			if m, err := strconv.Atoi(v); err == nil && m > 0 {
				months = m
			}
		}

		points, err := finSvc.GetAccountBalanceHistory(ctx, userID, accountID, months, isDemoRequest(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"account_id": accountID,
			"history":    points,
		})
	}
}

// ============================================================
// Demo seeding
// ============================================================

func seedDemoHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/demo/seed")
		defer span.End()

		userID := UserIDFromContext(ctx)
		if err := finSvc.SeedDemoData(ctx, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, domain.SuccessResponse{Message: "demo data seeded"})
	}
}
