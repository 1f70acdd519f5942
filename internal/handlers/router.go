package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kaskelas/backend/internal/config"
	mW "github.com/kaskelas/backend/internal/middleware"
	"github.com/kaskelas/backend/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries everything the HTTP surface needs. Uploader, Gatherer and Ping may be nil.
type Deps struct {
	Payments  *services.PaymentService
	Generator BillGenerator
	Funds     *services.FundApplicationService
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Accounts  *services.PaymentAccountService
	Uploader  Uploader

	Server   config.ServerConfig
	JWT      config.JWTConfig
	Cron     config.CronConfig
	Gatherer prometheus.Gatherer
	Ping     func(ctx context.Context) error
}

func NewRouter(d Deps) http.Handler {
	bills := NewBillHandler(d.Payments, d.Uploader)
	bendahara := NewBendaharaHandler(d.Payments, d.Funds, d.Ledger, d.Dashboard)
	funds := NewFundApplicationHandler(d.Funds, d.Uploader)
	transactions := NewTransactionHandler(d.Ledger)
	accounts := NewPaymentAccountHandler(d.Accounts)
	dashboard := NewDashboardHandler(d.Dashboard, d.Ledger, d.Payments, d.Funds)
	cron := NewCronHandler(d.Generator, d.Cron.Timeout)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mW.CronKeyHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", health(d.Ping))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/cron", func(r chi.Router) {
			r.Get("/health", cron.Health)
			r.With(mW.CronKey(d.Cron.SecretKey)).Post("/generate-bills", cron.GenerateBills)
		})

		r.Group(func(r chi.Router) {
			r.Use(mW.Auth(d.JWT))

			r.Route("/cash-bills", func(r chi.Router) {
				r.Get("/", bills.MyBills)
				r.Get("/my", bills.MyBills)
				r.Get("/{id}", bills.GetBill)
				r.Post("/{id}/pay", bills.Pay)
				r.Post("/{id}/cancel-payment", bills.CancelPayment)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/summary", dashboard.Summary)
				r.Get("/pending-bills", dashboard.PendingBills)
				r.Get("/pending-applications", dashboard.PendingApplications)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", transactions.List)
				r.Get("/chart-data", transactions.ChartData)
				r.Get("/breakdown", transactions.Breakdown)
				r.Get("/{id}", transactions.Get)
			})

			r.Route("/fund-applications", func(r chi.Router) {
				r.Get("/", funds.List)
				r.Get("/my", funds.MyApplications)
				r.Get("/{id}", funds.Get)
				r.Post("/", funds.Create)
			})

			r.Route("/payment-accounts", func(r chi.Router) {
				r.Get("/active", accounts.Active)
				r.Get("/{id}", accounts.Get)
				r.Get("/{id}/qr", accounts.QRCode)

				r.Group(func(r chi.Router) {
					r.Use(mW.RequireTreasurer)
					r.Get("/", accounts.List)
					r.Post("/", accounts.Create)
					r.Put("/{id}", accounts.Update)
					r.Delete("/{id}", accounts.Delete)
					r.Post("/{id}/activate", accounts.Activate)
					r.Post("/{id}/deactivate", accounts.Deactivate)
				})
			})

			r.Route("/bendahara", func(r chi.Router) {
				r.Use(mW.RequireTreasurer)

				r.Get("/dashboard", bendahara.Dashboard)
				r.Get("/students", bendahara.Students)
				r.Get("/rekap-kas", bendahara.RekapKas)
				r.Get("/cash-bills", bendahara.ClassBills)
				r.Get("/pending-payments", bendahara.PendingPayments)
				r.Post("/cash-bills/{id}/confirm-payment", bendahara.ConfirmPayment)
				r.Post("/cash-bills/{id}/reject-payment", bendahara.RejectPayment)
				r.Post("/fund-applications/{id}/approve", bendahara.ApproveFundApplication)
				r.Post("/fund-applications/{id}/reject", bendahara.RejectFundApplication)
				r.Post("/transactions", bendahara.CreateTransaction)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		services.SendStatusError(w, http.StatusNotFound, services.CodeNotFound, "Route "+r.Method+" "+r.URL.Path+" not found")
	})
	return r
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}
