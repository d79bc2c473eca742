/*
Package directory implements the client side of the external credential store.

This file defines the Client struct, which exposes the four fire-and-forget
directory requests (log-on, log-off, create, update, delete) and delivers
asynchronous log-on results back to the chat core. Requests run on a worker
goroutine so the chat event loop never blocks on the store.
*/
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"linechat/internal/pkg/logx"
)

const (
	// requestQueueSize bounds the number of directory requests waiting for the worker.
	requestQueueSize = 64

	// requestTimeout bounds a single store call made by the worker.
	requestTimeout = 10 * time.Second
)

type requestKind int

const (
	reqLogOn requestKind = iota
	reqLogOff
	reqCreate
	reqUpdate
	reqDelete
)

// request is one queued directory-service call.
type request struct {
	kind        requestKind
	userName    string
	password    string
	hasPassword bool
	profile     Profile
	tag         string
}

// Client is the asynchronous front of the directory service.
//
// Log-on is the only request with an observable outcome: its result is passed
// to the deliver callback, correlated by the caller-supplied tag. Create,
// update, delete and log-off are fire-and-forget; their outcome is logged
// here and never reported to the caller. That asymmetry is the directory
// protocol's contract, not an omission.
type Client struct {
	store Store

	// deliver receives every log-on result. It is called from the worker
	// goroutine; the receiver is expected to hand the result off (e.g. post
	// it to an event loop) rather than process it in place.
	deliver func(LogOnResult)

	requests chan request
	wg       sync.WaitGroup
	logger   zerolog.Logger
}

// NewClient constructs a Client over the given store and starts its worker.
func NewClient(store Store, deliver func(LogOnResult)) *Client {
	c := &Client{
		store:    store,
		deliver:  deliver,
		requests: make(chan request, requestQueueSize),
		logger:   logx.Logger().With().Str("component", "directory").Logger(),
	}

	c.wg.Add(1)
	go c.runWorker()

	return c
}

// Close stops accepting requests and waits for the worker to drain the queue.
func (c *Client) Close() {
	close(c.requests)
	c.wg.Wait()
}

// LogOn queues a log-on request for the named account. The result is
// delivered asynchronously, carrying the supplied correlation tag.
func (c *Client) LogOn(userName, password string, profile Profile, tag string) {
	c.enqueue(request{
		kind:     reqLogOn,
		userName: userName,
		password: password,
		profile:  profile.Clone(),
		tag:      tag,
	})
}

// LogOff notifies the directory that the named account left. Fire-and-forget.
func (c *Client) LogOff(userName string) {
	c.enqueue(request{kind: reqLogOff, userName: userName})
}

// Create queues an account-creation request, with or without an initial
// password. Fire-and-forget.
func (c *Client) Create(userName, password string, hasPassword bool) {
	c.enqueue(request{
		kind:        reqCreate,
		userName:    userName,
		password:    password,
		hasPassword: hasPassword,
	})
}

// Update queues a password-change request for the named account. Fire-and-forget.
func (c *Client) Update(userName, newPassword string) {
	c.enqueue(request{kind: reqUpdate, userName: userName, password: newPassword})
}

// Delete queues an account-deletion request. Fire-and-forget.
func (c *Client) Delete(userName string) {
	c.enqueue(request{kind: reqDelete, userName: userName})
}

// enqueue hands a request to the worker without ever blocking the caller.
// A full queue drops the request with a warning; for log-on that surfaces to
// the session as a missing response, the same as an unreachable directory.
func (c *Client) enqueue(req request) {
	select {
	case c.requests <- req:
	default:
		c.logger.Warn().
			Int("kind", int(req.kind)).
			Str("user_name", req.userName).
			Msg("Directory request queue full, dropping request")
	}
}

// runWorker executes queued requests one at a time until the queue is closed.
func (c *Client) runWorker() {
	defer c.wg.Done()

	c.logger.Info().Msg("Directory worker started.")

	for req := range c.requests {
		c.execute(req)
	}

	c.logger.Info().Msg("Directory worker stopped.")
}

// execute performs one store call with a bounded context.
func (c *Client) execute(req request) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch req.kind {
	case reqLogOn:
		result, err := c.store.LogOn(ctx, req.userName, req.password, req.profile)
		if err != nil {
			c.logger.Error().Err(err).
				Str("user_name", req.userName).
				Msg("Log-on request failed against the store, reporting denial")

			result = LogOnResult{
				Authorized: false,
				UserName:   req.userName,
				Password:   req.password,
				Profile:    req.profile,
			}
		}

		result.Tag = req.tag
		c.deliver(result)

	case reqLogOff:
		if err := c.store.LogOff(ctx, req.userName); err != nil {
			c.logger.Warn().Err(err).
				Str("user_name", req.userName).
				Msg("Log-off request failed")
		}

	case reqCreate:
		if err := c.store.Create(ctx, req.userName, req.password, req.hasPassword); err != nil {
			c.logger.Warn().Err(err).
				Str("user_name", req.userName).
				Msg("Create request failed")
		}

	case reqUpdate:
		if err := c.store.Update(ctx, req.userName, req.password); err != nil {
			c.logger.Warn().Err(err).
				Str("user_name", req.userName).
				Msg("Update request failed")
		}

	case reqDelete:
		if err := c.store.Delete(ctx, req.userName); err != nil {
			c.logger.Warn().Err(err).
				Str("user_name", req.userName).
				Msg("Delete request failed")
		}
	}
}
