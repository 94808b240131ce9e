// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package poll implements the status-polling protocol for backends that
// answer a submission with a job handle instead of an immediate result. The
// poller issues status GETs until the remote reports completion, a terminal
// error, or the retry budget runs out.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Interval is the fixed delay between status checks. ErrorBackoff is the
// longer delay used after a transient request or parse failure, so one flaky
// poll does not fail a multi-minute job. Declared as vars so tests can
// substitute tiny delays.
var (
	Interval     = 2 * time.Second
	ErrorBackoff = 5 * time.Second
)

// DefaultBudget is the maximum number of status checks before the job is
// declared timed out: 300 polls at 2 s apart, i.e. up to 10 minutes.
const DefaultBudget = 300

// noticeEvery controls how often a "still converting" progress notice is
// emitted, in polls.
const noticeEvery = 10

// ErrTimedOut reports an exhausted retry budget. It is terminal; the
// conversion must be re-invoked by the user.
var ErrTimedOut = errors.New("conversion timed out, please try again later")

// statusPayload is the subset of the remote status document the poller
// inspects; the full body is handed to the normalizer untouched.
type statusPayload struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Poller drives one in-flight asynchronous job to a terminal state.
type Poller struct {
	// Client issues the status GETs.
	Client *http.Client

	// Headers are added to every status request (e.g. the API key header).
	Headers map[string]string

	// Budget is the maximum number of polls; DefaultBudget when zero.
	Budget int

	// Notices receives user-visible progress messages.
	Notices io.Writer
}

// Wait polls checkURL until the remote status is "complete" and returns the
// final raw body for normalization. A remote-reported error is terminal and
// returned as an error; transient request or decode failures keep the loop
// alive with a longer backoff. When the budget is exhausted Wait returns
// ErrTimedOut.
func (p *Poller) Wait(ctx context.Context, checkURL string) (json.RawMessage, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	total := budget

	raw, status, err := p.check(ctx, checkURL)
	if err != nil {
		// Transient, same as inside the loop: back off and keep polling.
		fmt.Fprintf(os.Stderr, "polling error: %v\n", err)
		if err := sleep(ctx, ErrorBackoff); err != nil {
			return nil, err
		}
	} else if status.Error != "" {
		// A terminal remote error can arrive on the very first check.
		return nil, fmt.Errorf("remote reported error: %s", status.Error)
	}

	for status.Status != "complete" && budget > 0 {
		budget--
		if err := sleep(ctx, Interval); err != nil {
			return nil, err
		}

		nextRaw, nextStatus, err := p.check(ctx, checkURL)
		if err != nil {
			// Transient: a single flaky poll must not fail the job.
			fmt.Fprintf(os.Stderr, "polling error: %v\n", err)
			if err := sleep(ctx, ErrorBackoff); err != nil {
				return nil, err
			}
			continue
		}
		raw, status = nextRaw, nextStatus

		if budget%noticeEvery == 0 && p.Notices != nil {
			fmt.Fprintf(p.Notices, "Converting... (%d/%d)\n", total-budget, total)
		}

		if status.Error != "" {
			return nil, fmt.Errorf("remote reported error: %s", status.Error)
		}
	}

	if status.Status != "complete" {
		return nil, ErrTimedOut
	}
	return raw, nil
}

// check issues one status GET and decodes the status fields.
func (p *Poller) check(ctx context.Context, checkURL string) (json.RawMessage, statusPayload, error) {
	var status statusPayload

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return nil, status, err
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, status, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, status, err
	}
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "polling error: HTTP %d\n", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, status, fmt.Errorf("decoding status response: %w", err)
	}
	return body, status, nil
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
