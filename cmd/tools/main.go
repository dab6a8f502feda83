package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var (
	host      = flag.String("host", "http://127.0.0.1:8090", "umbra interface api host")
	preset    = flag.String("preset", "", "preset to execute: status, balance, send, inbox, claim, state, activity, airdrop")
	recipient = flag.String("recipient", "", "send destination, or inbox owner for inbox/claim")
	amount    = flag.String("amount", "", "amount to send or airdrop")
	token     = flag.String("token", "SOL", "token to send")
	wait      = flag.Duration("wait", 90*time.Second, "how long send/claim wait for a terminal step")
)

var presets = map[string]func(context.Context) error{
	"status":   getStatus,
	"balance":  getBalance,
	"send":     send,
	"inbox":    scanInbox,
	"claim":    claimAll,
	"state":    getState,
	"activity": getActivity,
	"airdrop":  airdrop,
}

func main() {
	flag.Parse()

	run, ok := presets[*preset]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown preset %q\n", *preset)
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", *preset, err)
		os.Exit(1)
	}
}

func call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, *host+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make http call: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if res.StatusCode >= 300 {
		return raw, fmt.Errorf("%s %s: HTTP %d: %s", method, path, res.StatusCode, bytes.TrimSpace(raw))
	}
	return raw, nil
}

func show(raw json.RawMessage) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(out.String())
}

func get(path string) func(context.Context) error {
	return func(ctx context.Context) error {
		raw, err := call(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		show(raw)
		return nil
	}
}

var (
	getStatus   = get("/status")
	getBalance  = get("/balance")
	getState    = get("/lifecycle")
	getActivity = get("/activity")
)

func send(ctx context.Context) error {
	if *recipient == "" || *amount == "" {
		return fmt.Errorf("-recipient and -amount are required")
	}

	raw, err := call(ctx, http.MethodPost, "/send", map[string]string{
		"recipient": *recipient,
		"amount":    *amount,
		"token":     *token,
	})
	if err != nil {
		return err
	}
	show(raw)

	if _, err := call(ctx, http.MethodPost, "/send/confirm", nil); err != nil {
		return err
	}
	return waitTerminal(ctx)
}

func scanInbox(ctx context.Context) error {
	raw, err := call(ctx, http.MethodPost, "/inbox/scan", recipientBody())
	if err != nil {
		return err
	}
	show(raw)
	return nil
}

func claimAll(ctx context.Context) error {
	if err := scanInbox(ctx); err != nil {
		return err
	}
	if _, err := call(ctx, http.MethodPost, "/inbox/claim", recipientBody()); err != nil {
		return err
	}
	return waitTerminal(ctx)
}

func airdrop(ctx context.Context) error {
	body := map[string]string{}
	if *amount != "" {
		body["amount"] = *amount
	}
	raw, err := call(ctx, http.MethodPost, "/airdrop", body)
	if err != nil {
		return err
	}
	show(raw)
	return nil
}

func recipientBody() any {
	if *recipient == "" {
		return nil
	}
	return map[string]string{"recipient": *recipient}
}

type lifecycleView struct {
	Step    string `json:"step"`
	Outcome string `json:"outcome"`
}

// waitTerminal polls the lifecycle until it reaches a terminal step.
func waitTerminal(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := ""
	for {
		raw, err := call(ctx, http.MethodGet, "/lifecycle", nil)
		if err != nil {
			return err
		}
		var st lifecycleView
		if err := json.Unmarshal(raw, &st); err != nil {
			return fmt.Errorf("failed to decode lifecycle: %w", err)
		}
		if st.Step != last {
			fmt.Printf("step: %s\n", st.Step)
			last = st.Step
		}
		if st.Step == "terminal" {
			show(raw)
			if st.Outcome != "finalized" {
				return fmt.Errorf("transfer ended %s", st.Outcome)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
