package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/neartreasury/kyc-status-server/internal/api"
	"github.com/neartreasury/kyc-status-server/internal/kyc"
	"github.com/neartreasury/kyc-status-server/internal/kyc/mocks"
)

func TestNewServer(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	mockSvc := mocks.NewMockStatusService(ctrl)
	mockSvc.EXPECT().CheckReadiness(gomock.Any()).Return(nil).AnyTimes()
	mockSvc.EXPECT().Resolve(gomock.Any(), "alice.near").Return(&kyc.Resolution{
		AccountID: "alice.near",
		KycStatus: kyc.StatusApproved,
	}, nil).AnyTimes()

	router := api.NewServer(mockSvc)
	require.NotNil(t, router)

	testRoutes := []struct {
		path       string
		method     string
		wantStatus int
	}{
		{"/health", "GET", http.StatusOK},
		{"/readiness", "GET", http.StatusOK},
		{"/version", "GET", http.StatusOK},
		{"/kyc/alice.near", "GET", http.StatusOK},
		{"/kyc/alice.near", "POST", http.StatusMethodNotAllowed},
		{"/notfound", "GET", http.StatusNotFound},
	}

	for _, tt := range testRoutes {
		tt := tt
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			req, err := http.NewRequest(tt.method, tt.path, nil)
			require.NoError(t, err)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestNewServer_WithMetricsHandler(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockStatusService(ctrl)

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("# metrics"))
	})

	router := api.NewServer(mockSvc, api.WithMetricsHandler(metricsHandler))

	req, err := http.NewRequest("GET", "/metrics", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "# metrics", rr.Body.String())
}

func TestNewServer_WithMiddleware(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockStatusService(ctrl)

	var sawRequestID bool
	checkMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawRequestID = middleware.GetReqID(r.Context()) != ""
			next.ServeHTTP(w, r)
		})
	}

	router := api.NewServer(mockSvc,
		api.WithMiddlewares(middleware.RequestID, checkMiddleware, api.LoggingMiddleware),
	)

	req, err := http.NewRequest("GET", "/health", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, sawRequestID, "RequestID middleware should run before later middleware")
}

func TestNewServer_CORS(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := mocks.NewMockStatusService(ctrl)

	corsMiddleware := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	})
	router := api.NewServer(mockSvc, api.WithMiddlewares(corsMiddleware))

	// Browser preflight for a cross-origin GET.
	req, err := http.NewRequest("OPTIONS", "/kyc/alice.near", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
