// Package client implements the payer-side reconciliation protocol: after a
// session is assigned it watches for completion over a push stream with a
// polling fallback, fires the success handler exactly once, and recovers
// in-flight sessions after a reload.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var ErrNoPendingSession = errors.New("no pending session to recover")

type Config struct {
	BaseURL string
	Token   string

	// PollInterval defaults to 3s; each wait adds up to PollJitter
	// (default 1s) so reloading clients do not poll in lockstep.
	PollInterval time.Duration
	PollJitter   time.Duration

	HTTPClient *http.Client
}

type Session struct {
	SessionID        string `json:"session_id"`
	Status           string `json:"status"`
	ExactAmountDue   int64  `json:"exact_amount_due"`
	DisplayAmount    string `json:"display_amount"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}

type Client struct {
	baseURL      string
	token        string
	pollInterval time.Duration
	pollJitter   time.Duration
	hc           *http.Client
}

func New(cfg Config) *Client {
	c := &Client{
		baseURL:      cfg.BaseURL,
		token:        cfg.Token,
		pollInterval: cfg.PollInterval,
		pollJitter:   cfg.PollJitter,
		hc:           cfg.HTTPClient,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 3 * time.Second
	}
	if c.pollJitter <= 0 {
		c.pollJitter = time.Second
	}
	if c.hc == nil {
		c.hc = &http.Client{}
	}
	return c
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.hc.Do(req)
}

// SessionStatus re-reads one session, the polling half of the protocol.
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (*Session, error) {
	resp, err := c.get(ctx, "/api/payments/sessions/"+sessionID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session status returned %d", resp.StatusCode)
	}
	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// RecoverPending finds the caller's in-flight session after a reload. The
// server recomputes the remaining TTL from the session's creation time.
func (c *Client) RecoverPending(ctx context.Context) (*Session, error) {
	resp, err := c.get(ctx, "/api/payments/sessions/current")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoPendingSession
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("session recovery returned %d", resp.StatusCode)
	}
	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

type Handlers struct {
	OnPaid    func(Session)
	OnExpired func(Session)
}

// Watcher owns the three concurrent activities of one pending session: the
// push subscription, the polling loop and the TTL deadline. All three share
// one context, so cancelling it (or any terminal signal) tears everything
// down together. A compare-and-swap guard guarantees that exactly one
// terminal handler runs even when push and poll observe the same transition
// near-simultaneously.
type Watcher struct {
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	resolved atomic.Bool
}

func (w *Watcher) Stop() {
	w.cancel()
	w.wg.Wait()
}

// Wait blocks until every activity has shut down.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// Watch starts observing a pending session. The handlers run on whichever
// signal arrives first; both push and poll report through the same guard.
func (c *Client) Watch(ctx context.Context, session Session, handlers Handlers) *Watcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{cancel: cancel}

	resolve := func(latest Session) {
		if !w.resolved.CompareAndSwap(false, true) {
			return
		}
		// stop the other activities before the handler runs
		cancel()
		switch latest.Status {
		case "paid":
			if handlers.OnPaid != nil {
				handlers.OnPaid(latest)
			}
		case "expired", "cancelled":
			if handlers.OnExpired != nil {
				handlers.OnExpired(latest)
			}
		}
	}

	w.wg.Add(3)
	go c.pushLoop(ctx, &w.wg, session, resolve)
	go c.pollLoop(ctx, &w.wg, session, resolve)
	go c.deadlineLoop(ctx, &w.wg, session, resolve)

	return w
}

// pushLoop consumes the server-sent event stream. Any failure here is
// silent: the poll loop is the safety net for a dropped push channel.
func (c *Client) pushLoop(ctx context.Context, wg *sync.WaitGroup, session Session, resolve func(Session)) {
	defer wg.Done()

	resp, err := c.get(ctx, "/api/payments/sessions/"+session.SessionID+"/events")
	if err != nil {
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}

	go func() {
		// unblock the scanner when the watcher shuts down
		<-ctx.Done()
		resp.Body.Close()
	}()

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case len(line) > 7 && line[:7] == "event: ":
			event = line[7:]
		case line == "" && event != "":
			switch event {
			case "paid":
				session.Status = "paid"
				resolve(session)
				return
			case "expired":
				session.Status = "expired"
				resolve(session)
				return
			}
			event = ""
		}
	}
}

func (c *Client) pollLoop(ctx context.Context, wg *sync.WaitGroup, session Session, resolve func(Session)) {
	defer wg.Done()

	for {
		wait := c.pollInterval + time.Duration(rand.Int63n(int64(c.pollJitter)))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		latest, err := c.SessionStatus(ctx, session.SessionID)
		if err != nil {
			continue
		}
		if latest.Status != "pending" {
			resolve(*latest)
			return
		}
	}
}

// deadlineLoop turns the countdown hitting zero into an authoritative
// status read, so an expired session resolves even if no poll tick lands
// right after the TTL elapses.
func (c *Client) deadlineLoop(ctx context.Context, wg *sync.WaitGroup, session Session, resolve func(Session)) {
	defer wg.Done()

	deadline := time.Duration(session.RemainingSeconds)*time.Second + time.Second
	select {
	case <-ctx.Done():
		return
	case <-time.After(deadline):
	}

	latest, err := c.SessionStatus(ctx, session.SessionID)
	if err != nil {
		return
	}
	if latest.Status != "pending" {
		resolve(*latest)
	}
}
