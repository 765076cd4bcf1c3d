package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerline/event-ticketing/internal/adapters/crdb"
	redisadapter "github.com/ledgerline/event-ticketing/internal/adapters/redis"
	"github.com/ledgerline/event-ticketing/internal/config"
	httphandler "github.com/ledgerline/event-ticketing/internal/http"
	"github.com/ledgerline/event-ticketing/internal/idempotency"
	"github.com/ledgerline/event-ticketing/internal/ledger"
	"github.com/ledgerline/event-ticketing/internal/observability"
	"github.com/ledgerline/event-ticketing/internal/rateLimit"
	"github.com/ledgerline/event-ticketing/internal/rolegate"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const schema = `
	CREATE DATABASE IF NOT EXISTS etb;
	CREATE TABLE IF NOT EXISTS etb.principals (
		id UUID PRIMARY KEY,
		email STRING NOT NULL UNIQUE,
		name STRING NOT NULL,
		role STRING NOT NULL CHECK (role IN ('organizer', 'customer')),
		password_hash STRING NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS etb.organizer_profiles (
		id UUID PRIMARY KEY,
		principal_id UUID NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS etb.customer_profiles (
		id UUID PRIMARY KEY,
		principal_id UUID NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS etb.events (
		id UUID PRIMARY KEY,
		organizer_id UUID NOT NULL,
		title STRING NOT NULL,
		description STRING NOT NULL DEFAULT '',
		venue STRING NOT NULL DEFAULT '',
		starts_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS etb.ticket_pools (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		kind STRING NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		capacity INT NOT NULL,
		availability INT NOT NULL CHECK (availability >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS etb.bookings (
		id UUID PRIMARY KEY,
		customer_id UUID NOT NULL,
		pool_id UUID NOT NULL,
		event_id UUID NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS etb.outbox (
		id UUID PRIMARY KEY,
		aggregate_type STRING NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type STRING NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status STRING NOT NULL DEFAULT 'NEW',
		dedupe_key STRING NOT NULL DEFAULT ''
	);
`

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path, token string, body interface{}, headers map[string]string) *http.Response {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func (c *client) register(email, role string) {
	c.t.Helper()
	resp := c.do("POST", "/v1/auth/register", "", map[string]string{
		"email": email, "name": "Test", "password": "hunter22", "role": role,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s failed with status %d", email, resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do("POST", "/v1/auth/login", "", map[string]string{
		"email": email, "password": "hunter22",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s failed with status %d", email, resp.StatusCode)
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	decode(c.t, resp, &loginResp)
	c.token = loginResp.Token
}

func TestIntegration_BookingFlow(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	crdbHost, err := crdbContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	crdbPort, err := crdbContainer.MappedPort(ctx, "26257")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		CRDBDSN:      "postgresql://root@" + crdbHost + ":" + crdbPort.Port() + "/etb?sslmode=disable",
		RedisAddr:    redisHost + ":" + redisPort.Port(),
		JWTSecret:    "test-secret",
		TxTimeout:    5 * time.Second,
		OTLPEndpoint: "",
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}

	logger := observability.NewLogger()
	repo := crdb.NewRepository(pool, cfg.TxTimeout)
	gate := rolegate.New(repo)
	ldg := ledger.New(crdb.NewLedgerStore(repo), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), time.Hour)
	rl := rateLimit.NewRateLimiter(redisadapter.NewCache(redisClient))

	handlers := httphandler.NewHandlers(cfg, repo, gate, ldg, idemp)
	srv := httptest.NewServer(httphandler.SetupRouter(handlers, logger, rl))
	defer srv.Close()

	organizer := &client{t: t, base: srv.URL}
	organizer.register("organizer@example.com", "organizer")
	customer := &client{t: t, base: srv.URL}
	customer.register("customer@example.com", "customer")

	// Organizer creates an event with one pool of 10 tickets.
	resp := organizer.do("POST", "/v1/events", organizer.token, map[string]interface{}{
		"title":     "Launch Party",
		"venue":     "Warehouse 12",
		"starts_at": time.Now().Add(48 * time.Hour).UTC(),
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create event failed with status %d", resp.StatusCode)
	}
	var event struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, resp, &event)

	// A customer cannot create events.
	resp = customer.do("POST", "/v1/events", customer.token, map[string]interface{}{
		"title": "Rogue Event", "starts_at": time.Now().Add(time.Hour),
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for customer creating event, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = organizer.do("POST", "/v1/events/"+event.ID.String()+"/pools", organizer.token, map[string]interface{}{
		"kind": "general", "price": 25.00, "capacity": 10,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create pool failed with status %d", resp.StatusCode)
	}
	var ticketPool struct {
		ID           uuid.UUID `json:"id"`
		Availability int       `json:"availability"`
	}
	decode(t, resp, &ticketPool)
	if ticketPool.Availability != 10 {
		t.Fatalf("expected availability seeded to 10, got %d", ticketPool.Availability)
	}

	// Customer books 4 tickets; the same idempotency key replays the response.
	bookPath := "/v1/pools/" + ticketPool.ID.String() + "/bookings"
	key := uuid.NewString()
	resp = customer.do("POST", bookPath, customer.token,
		map[string]int{"quantity": 4}, map[string]string{"Idempotency-Key": key})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create booking failed with status %d", resp.StatusCode)
	}
	var booking struct {
		ID       uuid.UUID `json:"id"`
		Quantity int       `json:"quantity"`
	}
	decode(t, resp, &booking)

	resp = customer.do("POST", bookPath, customer.token,
		map[string]int{"quantity": 4}, map[string]string{"Idempotency-Key": key})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("idempotent replay failed with status %d", resp.StatusCode)
	}
	var replay struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, resp, &replay)
	if replay.ID != booking.ID {
		t.Errorf("replay returned a different booking: %s vs %s", replay.ID, booking.ID)
	}

	// Missing key is rejected before any work happens.
	resp = customer.do("POST", bookPath, customer.token, map[string]int{"quantity": 1}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without idempotency key, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Only 6 remain; 7 must be rejected.
	resp = customer.do("POST", bookPath, customer.token,
		map[string]int{"quantity": 7}, map[string]string{"Idempotency-Key": uuid.NewString()})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for overbooking, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Growing 4 -> 8 needs delta 4 against the remaining 6.
	resp = customer.do("PATCH", "/v1/bookings/"+booking.ID.String(), customer.token,
		map[string]int{"quantity": 8}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update booking failed with status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The organizer has no customer profile; the booking reads as absent.
	resp = organizer.do("PATCH", "/v1/bookings/"+booking.ID.String(), organizer.token,
		map[string]int{"quantity": 1}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for non-owner update, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Cancel reimburses; a second cancel finds nothing.
	resp = customer.do("DELETE", "/v1/bookings/"+booking.ID.String(), customer.token, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel failed with status %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = customer.do("DELETE", "/v1/bookings/"+booking.ID.String(), customer.token, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on second cancel, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = customer.do("GET", "/v1/events/"+event.ID.String()+"/pools", "", nil, nil)
	var pools []struct {
		Availability int `json:"availability"`
	}
	decode(t, resp, &pools)
	if len(pools) != 1 || pools[0].Availability != 10 {
		t.Errorf("expected pool restored to 10, got %+v", pools)
	}

	// Role changes are rejected outright, even to the current value.
	resp = customer.do("PATCH", "/v1/me", customer.token, map[string]string{"role": "customer"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for role change attempt, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
