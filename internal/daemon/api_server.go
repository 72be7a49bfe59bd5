package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"loomline/internal/api"
	"loomline/internal/config"
	"loomline/internal/logging"
	"loomline/internal/services"
	"loomline/internal/store"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	reads   *api.Service
	manager workflowOps

	listener net.Listener
	server   *http.Server
}

// workflowOps is the mutation surface the API exposes.
type workflowOps interface {
	ActivateStage(ctx context.Context, productID, stageID int64, opts store.ActivateOptions) (*store.ActiveStage, error)
	PauseStage(ctx context.Context, productID, stageID int64) error
	ResumeStage(ctx context.Context, productID, stageID int64) error
	CompleteStage(ctx context.Context, productID, stageID int64) error
	AssignWorkers(ctx context.Context, productID, stageID int64, userIDs []int64) (*store.BatchAssignResult, error)
	StartWork(ctx context.Context, productID, stageID, userID int64) (*store.WorkerAssignment, error)
	CompleteWork(ctx context.Context, productID, stageID, userID int64, notes string) (*store.WorkerAssignment, bool, error)
	PauseWork(ctx context.Context, productID, stageID, userID int64, reason string) (*store.WorkerAssignment, error)
	RemoveWorker(ctx context.Context, productID, stageID, userID int64) error
	CreateMaterialRequest(ctx context.Context, productID, stageID, requesterID int64, reason string) (*store.MaterialRequest, error)
	MarkRequestPurchased(ctx context.Context, requestID, purchaserID int64, expectedDelivery, responseNote string) (*store.MaterialRequest, error)
	MarkRequestDelivered(ctx context.Context, requestID int64) (*store.MaterialRequest, error)
	AddRequestMessage(ctx context.Context, requestID, userID int64, message string) (*store.RequestMessage, error)
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger,
		daemon:  d,
		reads:   api.NewService(d.store),
		manager: d.manager,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/stages", srv.handleStages)
	mux.HandleFunc("GET /api/stages/{stage}/products", srv.handleStageBoard)
	mux.HandleFunc("GET /api/products", srv.handleProducts)
	mux.HandleFunc("GET /api/products/{product}/stages", srv.handleProductStages)
	mux.HandleFunc("GET /api/products/{product}/stages/{stage}", srv.handleStageDetail)
	mux.HandleFunc("POST /api/products/{product}/stages/{stage}/activate", srv.handleActivateStage)
	mux.HandleFunc("POST /api/products/{product}/stages/{stage}/pause", srv.handlePauseStage)
	mux.HandleFunc("POST /api/products/{product}/stages/{stage}/resume", srv.handleResumeStage)
	mux.HandleFunc("POST /api/products/{product}/stages/{stage}/complete", srv.handleCompleteStage)
	mux.HandleFunc("POST /api/products/{product}/stages/{stage}/workers", srv.handleAssignWorkers)
	mux.HandleFunc("POST /api/products/{product}/stages/{stage}/workers/{user}/start", srv.handleStartWork)
	mux.HandleFunc("POST /api/products/{product}/stages/{stage}/workers/{user}/complete", srv.handleCompleteWork)
	mux.HandleFunc("POST /api/products/{product}/stages/{stage}/workers/{user}/pause", srv.handlePauseWork)
	mux.HandleFunc("DELETE /api/products/{product}/stages/{stage}/workers/{user}", srv.handleRemoveWorker)
	mux.HandleFunc("GET /api/workers/{user}/tasks", srv.handleWorkerTasks)
	mux.HandleFunc("GET /api/overview", srv.handleOverview)
	mux.HandleFunc("GET /api/materials", srv.handleMaterials)
	mux.HandleFunc("POST /api/materials", srv.handleCreateMaterial)
	mux.HandleFunc("POST /api/materials/{request}/purchase", srv.handlePurchaseMaterial)
	mux.HandleFunc("POST /api/materials/{request}/deliver", srv.handleDeliverMaterial)
	mux.HandleFunc("POST /api/materials/{request}/messages", srv.handleMaterialMessage)
	mux.HandleFunc("GET /api/warehouse", srv.handleWarehouse)
	mux.HandleFunc("GET /api/activity", srv.handleActivity)

	srv.server = &http.Server{
		Handler:           srv.withActor(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withActor tags each request with a correlation id and lifts the acting user
// from the X-Actor-Id header into the request context so mutations land in the
// activity log with attribution.
func (s *apiServer) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		if raw := strings.TrimSpace(r.Header.Get("X-Actor-Id")); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				ctx = services.WithActorID(ctx, id)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running":      status.Running,
		"databaseOk":   status.DatabaseOK,
		"databasePath": status.DatabasePath,
		"lockFilePath": status.LockFilePath,
		"apiAddress":   status.APIAddress,
	})
}

func (s *apiServer) handleStages(w http.ResponseWriter, r *http.Request) {
	stages, err := s.reads.Stages(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stages": stages})
}

func (s *apiServer) handleProducts(w http.ResponseWriter, r *http.Request) {
	status := store.ProductStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	products, err := s.reads.Products(r.Context(), status)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *apiServer) handleProductStages(w http.ResponseWriter, r *http.Request) {
	productID, ok := s.pathID(w, r, "product")
	if !ok {
		return
	}
	resp, err := s.reads.ProductStages(r.Context(), productID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStageBoard(w http.ResponseWriter, r *http.Request) {
	stageID, ok := s.pathID(w, r, "stage")
	if !ok {
		return
	}
	status := store.StageStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	resp, err := s.reads.StageBoard(r.Context(), stageID, status)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStageDetail(w http.ResponseWriter, r *http.Request) {
	productID, ok := s.pathID(w, r, "product")
	if !ok {
		return
	}
	stageID, ok := s.pathID(w, r, "stage")
	if !ok {
		return
	}
	detail, err := s.reads.StageDetail(r.Context(), productID, stageID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

type activateRequest struct {
	NormHours   *int64 `json:"normHours"`
	AllowRework bool   `json:"allowRework"`
}

func (s *apiServer) handleActivateStage(w http.ResponseWriter, r *http.Request) {
	productID, ok := s.pathID(w, r, "product")
	if !ok {
		return
	}
	stageID, ok := s.pathID(w, r, "stage")
	if !ok {
		return
	}
	var req activateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	active, err := s.manager.ActivateStage(r.Context(), productID, stageID, store.ActivateOptions{
		NormHours:   req.NormHours,
		AllowRework: req.AllowRework,
	})
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromActiveStage(active))
}

func (s *apiServer) handlePauseStage(w http.ResponseWriter, r *http.Request) {
	s.stageTransition(w, r, s.manager.PauseStage)
}

func (s *apiServer) handleResumeStage(w http.ResponseWriter, r *http.Request) {
	s.stageTransition(w, r, s.manager.ResumeStage)
}

func (s *apiServer) handleCompleteStage(w http.ResponseWriter, r *http.Request) {
	s.stageTransition(w, r, s.manager.CompleteStage)
}

func (s *apiServer) stageTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, productID, stageID int64) error) {
	productID, ok := s.pathID(w, r, "product")
	if !ok {
		return
	}
	stageID, ok := s.pathID(w, r, "stage")
	if !ok {
		return
	}
	if err := op(r.Context(), productID, stageID); err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type assignRequest struct {
	UserIDs []int64 `json:"userIds"`
}

func (s *apiServer) handleAssignWorkers(w http.ResponseWriter, r *http.Request) {
	productID, ok := s.pathID(w, r, "product")
	if !ok {
		return
	}
	stageID, ok := s.pathID(w, r, "stage")
	if !ok {
		return
	}
	var req assignRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.UserIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "userIds is required")
		return
	}
	result, err := s.manager.AssignWorkers(r.Context(), productID, stageID, req.UserIDs)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	assigned := make([]api.WorkerTask, 0, len(result.Assigned))
	for _, a := range result.Assigned {
		assigned = append(assigned, api.FromWorkerAssignment(a))
	}
	failed := make([]map[string]any, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, map[string]any{"userId": f.UserID, "reason": f.Reason})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"assigned": assigned, "failed": failed})
}

type workerActionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (s *apiServer) handleStartWork(w http.ResponseWriter, r *http.Request) {
	productID, stageID, userID, ok := s.workerPath(w, r)
	if !ok {
		return
	}
	assignment, err := s.manager.StartWork(r.Context(), productID, stageID, userID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromWorkerAssignment(assignment))
}

func (s *apiServer) handleCompleteWork(w http.ResponseWriter, r *http.Request) {
	productID, stageID, userID, ok := s.workerPath(w, r)
	if !ok {
		return
	}
	var req workerActionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	assignment, stageDone, err := s.manager.CompleteWork(r.Context(), productID, stageID, userID, req.Notes)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"assignment": api.FromWorkerAssignment(assignment),
		"stageDone":  stageDone,
	})
}

func (s *apiServer) handlePauseWork(w http.ResponseWriter, r *http.Request) {
	productID, stageID, userID, ok := s.workerPath(w, r)
	if !ok {
		return
	}
	var req workerActionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	assignment, err := s.manager.PauseWork(r.Context(), productID, stageID, userID, req.Reason)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromWorkerAssignment(assignment))
}

func (s *apiServer) handleRemoveWorker(w http.ResponseWriter, r *http.Request) {
	productID, stageID, userID, ok := s.workerPath(w, r)
	if !ok {
		return
	}
	if err := s.manager.RemoveWorker(r.Context(), productID, stageID, userID); err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) handleWorkerTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathID(w, r, "user")
	if !ok {
		return
	}
	status := store.WorkerStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	resp, err := s.reads.WorkerTasks(r.Context(), userID, status)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleOverview(w http.ResponseWriter, r *http.Request) {
	rows, err := s.reads.Overview(r.Context())
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"products": rows})
}

func (s *apiServer) handleMaterials(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := store.RequestStatus(strings.TrimSpace(query.Get("status")))
	var productID int64
	if raw := strings.TrimSpace(query.Get("product")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid product filter")
			return
		}
		productID = parsed
	}
	requests, err := s.reads.MaterialRequests(r.Context(), status, productID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

type createMaterialRequest struct {
	ProductID   int64  `json:"productId"`
	StageID     int64  `json:"stageId"`
	RequesterID int64  `json:"requesterId"`
	Reason      string `json:"reason"`
}

func (s *apiServer) handleCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	request, err := s.manager.CreateMaterialRequest(r.Context(), req.ProductID, req.StageID, req.RequesterID, req.Reason)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromMaterialRequest(request))
}

type purchaseRequest struct {
	PurchaserID      int64  `json:"purchaserId"`
	ExpectedDelivery string `json:"expectedDelivery"`
	ResponseNote     string `json:"responseNote"`
}

func (s *apiServer) handlePurchaseMaterial(w http.ResponseWriter, r *http.Request) {
	requestID, ok := s.pathID(w, r, "request")
	if !ok {
		return
	}
	var req purchaseRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	request, err := s.manager.MarkRequestPurchased(r.Context(), requestID, req.PurchaserID, req.ExpectedDelivery, req.ResponseNote)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromMaterialRequest(request))
}

func (s *apiServer) handleDeliverMaterial(w http.ResponseWriter, r *http.Request) {
	requestID, ok := s.pathID(w, r, "request")
	if !ok {
		return
	}
	request, err := s.manager.MarkRequestDelivered(r.Context(), requestID)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromMaterialRequest(request))
}

type messageRequest struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

func (s *apiServer) handleMaterialMessage(w http.ResponseWriter, r *http.Request) {
	requestID, ok := s.pathID(w, r, "request")
	if !ok {
		return
	}
	var req messageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	message, err := s.manager.AddRequestMessage(r.Context(), requestID, req.UserID, req.Message)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":      message.ID,
		"message": message.Message,
	})
}

func (s *apiServer) handleWarehouse(w http.ResponseWriter, r *http.Request) {
	exported := r.URL.Query().Get("exported") == "1" || strings.EqualFold(r.URL.Query().Get("exported"), "true")
	items, err := s.reads.Inventory(r.Context(), exported)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *apiServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.reads.Activity(r.Context(), limit)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s id", name))
		return 0, false
	}
	return id, true
}

func (s *apiServer) workerPath(w http.ResponseWriter, r *http.Request) (productID, stageID, userID int64, ok bool) {
	productID, ok = s.pathID(w, r, "product")
	if !ok {
		return 0, 0, 0, false
	}
	stageID, ok = s.pathID(w, r, "stage")
	if !ok {
		return 0, 0, 0, false
	}
	userID, ok = s.pathID(w, r, "user")
	if !ok {
		return 0, 0, 0, false
	}
	return productID, stageID, userID, true
}

// decodeBody tolerates an empty body so action endpoints work without one.
func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	s.writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func (s *apiServer) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case services.IsConflict(err):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
