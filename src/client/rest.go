package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/valyala/fasthttp"
)

const (
	DiscordAPI         = "https://discord.com/api/v10"
	defaultRESTTimeout = 30 * time.Second
	userAgent          = "DiscordBot (personal/cheesebot, 1.0)"
)

type restClient struct {
	http    *fasthttp.Client
	baseURL string
	token   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newRESTClient(httpClient *fasthttp.Client, baseURL, token string, logger *slog.Logger) *restClient {
	if httpClient == nil {
		httpClient = &fasthttp.Client{Name: userAgent}
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "discord-rest",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Client errors mean the API is up.
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				return httpErr.Status < 500 && httpErr.Status != fasthttp.StatusTooManyRequests
			}
			return err == nil
		},
	})

	return &restClient{
		http:    httpClient,
		baseURL: baseURL,
		token:   token,
		timeout: defaultRESTTimeout,
		breaker: breaker,
	}
}

// do sends an authenticated request and returns the response body.
// body, when non-nil, is sent as JSON.
func (r *restClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	return r.breaker.Execute(func() ([]byte, error) {
		return r.roundTrip(ctx, method, path, body)
	})
}

func (r *restClient) roundTrip(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	req.Header.SetMethod(method)
	req.SetRequestURI(r.baseURL + path)
	req.Header.Set("Authorization", "Bot "+r.token)
	req.Header.SetUserAgent(userAgent)

	if body != nil {
		payload, err := wireJSON.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	deadline := time.Now().Add(r.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := r.http.DoDeadline(req, res, deadline); err != nil {
		return nil, fmt.Errorf("error making http request: %w", err)
	}

	resBody := append([]byte(nil), res.Body()...)
	if status := res.StatusCode(); status < 200 || status >= 300 {
		return nil, &HTTPError{Method: method, Path: path, Status: status, Body: string(resBody)}
	}
	return resBody, nil
}
