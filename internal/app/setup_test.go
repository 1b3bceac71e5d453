package app

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abgdnv/productroom/internal/config"
	perrors "github.com/abgdnv/productroom/internal/errors"
	"github.com/abgdnv/productroom/internal/service"
	pkgconfig "github.com/abgdnv/productroom/pkg/config"
	"github.com/abgdnv/productroom/pkg/messaging"
	"github.com/abgdnv/productroom/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const productURL = "/api/v1/products"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Test_OpenStore(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         pkgconfig.DatabaseConfig
		expectError error
	}{
		{name: "sqlite", cfg: pkgconfig.DatabaseConfig{Driver: pkgconfig.DriverSqlite, Dir: t.TempDir()}},
		{name: "memory", cfg: pkgconfig.DatabaseConfig{Driver: pkgconfig.DriverMemory}},
		{name: "unknown", cfg: pkgconfig.DatabaseConfig{Driver: "oracle"}, expectError: perrors.ErrUnsupportedDriver},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			engine, closeFn, err := OpenStore(context.Background(), tc.cfg, discardLogger())

			// then
			if tc.expectError != nil {
				assert.ErrorIs(t, err, tc.expectError)
				return
			}
			require.NoError(t, err)
			defer closeFn()
			p, err := engine.Insert(context.Background(), "Widget", 1)
			require.NoError(t, err)
			assert.Positive(t, p.ID)
		})
	}
}

func Test_NewBroker_Disabled(t *testing.T) {
	broker, err := NewBroker(context.Background(), &config.Config{}, discardLogger())

	require.NoError(t, err)
	defer broker.Close()
	assert.IsType(t, messaging.NoopPublisher{}, broker.Publisher)
	assert.Nil(t, broker.JetStream)

	// nothing to consume without a broker
	assert.NoError(t, RunSubscriber(context.Background(), broker, config.Config{}.NATS, nil))
}

// AppSuite runs the HTTP surface against a real SQLite database.
type AppSuite struct {
	suite.Suite
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	deps   *Dependencies
	mp     *sdkmetric.MeterProvider
	server *httptest.Server
	close  func()
}

func (s *AppSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	logger := discardLogger()

	mp, metrics, err := telemetry.NewMeterProvider(ServiceName)
	s.Require().NoError(err)
	s.mp = mp

	engine, closeFn, err := OpenStore(s.ctx, pkgconfig.DatabaseConfig{Driver: pkgconfig.DriverSqlite, Dir: s.T().TempDir()}, logger)
	s.Require().NoError(err)
	s.close = closeFn

	s.deps, err = SetupDependencies(s.ctx, engine, messaging.NoopPublisher{}, config.ServiceConfig{OpTimeout: time.Second, QueueSize: 8}, logger)
	s.Require().NoError(err)

	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.deps.ProductService.Run(s.ctx)
	}()
	s.server = httptest.NewServer(SetupHttpHandler(s.deps, "/metrics", metrics))
}

func (s *AppSuite) TearDownSuite() {
	s.server.Close()
	s.cancel()
	<-s.done
	s.close()
	_ = s.mp.Shutdown(context.Background())
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppSuite))
}

func (s *AppSuite) do(method, path, body string) (*http.Response, []byte) {
	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer func() { _ = res.Body.Close() }()
	data, err := io.ReadAll(res.Body)
	s.Require().NoError(err)
	return res, data
}

func (s *AppSuite) add(name, quantity string) service.ProductDto {
	res, body := s.do(http.MethodPost, productURL, `{"productName":"`+name+`","quantity":"`+quantity+`"}`)
	s.Require().Equal(http.StatusCreated, res.StatusCode, string(body))
	var created service.ProductDto
	s.Require().NoError(json.Unmarshal(body, &created))
	return created
}

func (s *AppSuite) list(path string) []service.ProductDto {
	res, body := s.do(http.MethodGet, path, "")
	s.Require().Equal(http.StatusOK, res.StatusCode, string(body))
	var products []service.ProductDto
	s.Require().NoError(json.Unmarshal(body, &products))
	return products
}

func (s *AppSuite) Test01_AddCoercesQuantity() {
	// given
	first := s.add("Widget", "5")

	// when
	second := s.add("Widget", "abc")

	// then
	s.Equal(int32(5), first.Quantity)
	s.Equal(int32(0), second.Quantity)
	s.NotEqual(first.ID, second.ID)
	s.Subset(s.list(productURL+"/all"), []service.ProductDto{first, second})
	s.Subset(s.list(productURL), []service.ProductDto{first, second})
}

func (s *AppSuite) Test02_SearchWithoutMatchEmptiesDisplay() {
	// given
	s.add("Gadget", "3")

	// when
	found := s.list(productURL + "/search?name=Nothing")

	// then
	s.Empty(found)
	s.Empty(s.list(productURL))
	s.NotEmpty(s.list(productURL + "/all"))
}

func (s *AppSuite) Test03_StaleSearchAfterDelete() {
	// given
	sprocket := s.add("Sprocket", "2")
	s.Equal([]service.ProductDto{sprocket}, s.list(productURL+"/search?name=Sprocket"))

	// when
	res, body := s.do(http.MethodDelete, productURL+"?name=Sprocket", "")

	// then
	s.Equal(http.StatusOK, res.StatusCode)
	s.JSONEq(`{"deleted":1}`, string(body))
	s.Equal([]service.ProductDto{sprocket}, s.list(productURL))
	s.NotContains(s.list(productURL+"/all"), sprocket)
	s.Empty(s.list(productURL + "/search?name=Sprocket"))
}

func (s *AppSuite) Test04_StreamDeliversDisplay() {
	// given
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.server.URL+productURL+"/stream", nil)
	s.Require().NoError(err)

	// when
	res, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer func() { _ = res.Body.Close() }()
	line, err := bufio.NewReader(res.Body).ReadString('\n')

	// then
	s.Require().NoError(err)
	s.Equal("text/event-stream", res.Header.Get("Content-Type"))
	s.True(strings.HasPrefix(line, "data: ["), line)
}

func (s *AppSuite) Test05_MetricsExposeCounters() {
	res, body := s.do(http.MethodGet, "/metrics", "")

	s.Equal(http.StatusOK, res.StatusCode)
	s.Contains(string(body), "products_added_total")
	s.Contains(string(body), "product_searches_total")
}

func (s *AppSuite) Test06_HealthCheck() {
	res, _ := s.do(http.MethodGet, "/healthz", "")

	s.Equal(http.StatusOK, res.StatusCode)
}
