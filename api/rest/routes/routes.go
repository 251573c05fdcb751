package routes

import (
	"github.com/gorilla/mux"

	"decen-ai-backend/api/rest/handlers"
	"decen-ai-backend/api/rest/middleware"
	"decen-ai-backend/core/auth"
	"decen-ai-backend/core/inference"
	"decen-ai-backend/core/jobstore"
	"decen-ai-backend/core/monitoring"
	"decen-ai-backend/core/publish"
	"decen-ai-backend/core/worker"
	"decen-ai-backend/storage"
)

// Deps carries the wired components the API depends on.
type Deps struct {
	JobStore    jobstore.Store
	Blobs       storage.BlobStore
	Worker      *worker.Worker
	Publisher   *publish.Publisher
	ModelCache  *inference.Cache
	Payments    handlers.PaymentVerifier
	Ledger      handlers.Ledger
	AuthNonces  auth.NonceStore
	TokenIssuer *auth.TokenIssuer
	AuthDomain  string
}

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.AuthNonces, deps.TokenIssuer, deps.AuthDomain)
	datasetHandler := handlers.NewDatasetHandler(deps.Blobs)
	trainingHandler := handlers.NewTrainingHandler(deps.JobStore, deps.Worker)
	modelHandler := handlers.NewModelHandler(deps.Publisher)
	inferenceHandler := handlers.NewInferenceHandler(deps.ModelCache, deps.Payments)
	provenanceHandler := handlers.NewProvenanceHandler(deps.Ledger)
	dashboardHandler := handlers.NewDashboardHandler(monitoring.NewCollector(deps.JobStore))

	api := r.PathPrefix("/v1").Subrouter()

	// Auth endpoints
	api.HandleFunc("/auth/nonce", authHandler.GetNonce).Methods("GET")
	api.HandleFunc("/auth/verify", authHandler.Verify).Methods("POST")

	// Provenance reads are public
	api.HandleFunc("/provenance/cid/{cid}", provenanceHandler.ByCID).Methods("GET")
	api.HandleFunc("/provenance/owner/{address}", provenanceHandler.ByOwner).Methods("GET")
	api.HandleFunc("/dashboard/stats", dashboardHandler.Stats).Methods("GET")

	// Everything else requires a bearer token
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.RequireAuth(deps.TokenIssuer))
	authed.HandleFunc("/datasets/upload", datasetHandler.Upload).Methods("POST")
	authed.HandleFunc("/training/start", trainingHandler.Start).Methods("POST")
	authed.HandleFunc("/training/status/{job_id}", trainingHandler.Status).Methods("GET")
	authed.HandleFunc("/models/{job_id}/upload", modelHandler.Upload).Methods("POST")
	authed.HandleFunc("/inference/predict", inferenceHandler.Predict).Methods("POST")
}
