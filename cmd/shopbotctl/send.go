package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
	"github.com/boddenberg/shoeshop-bot-go/internal/chat/infra"
	"github.com/boddenberg/shoeshop-bot-go/internal/chat/replay"
	"github.com/boddenberg/shoeshop-bot-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type sendOptions struct {
	url       string
	intent    string
	text      string
	params    []string
	jarPath   string
	session   string
	token     string
	basicUser string
	basicPass string
	timeout   time.Duration
	showCtx   bool
}

func newSendCmd() *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one turn to the webhook, carrying contexts between runs in a jar file",
		Example: `  shopbotctl send --intent product_by_brand --text "giày Nike" --param brand=Nike
  shopbotctl send --intent select_product --text "chọn 1"
  shopbotctl send --intent select_product_size --text "size 42" --param size=42`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", envOr("SHOPBOT_URL", "http://localhost:8080"), "webhook server root")
	f.StringVar(&opts.intent, "intent", "", "intent display name (required)")
	f.StringVar(&opts.text, "text", "", "user utterance")
	f.StringArrayVar(&opts.params, "param", nil, "slot parameter as key=value; repeatable")
	f.StringVar(&opts.jarPath, "jar", ".shopbot-jar.json", "file holding the live contexts of the session")
	f.StringVar(&opts.session, "session", "", "session path; a new one is generated when the jar is empty")
	f.StringVar(&opts.token, "token", os.Getenv("SHOPBOT_TOKEN"), "bearer token")
	f.StringVar(&opts.basicUser, "user", "", "basic auth user")
	f.StringVar(&opts.basicPass, "password", os.Getenv("SHOPBOT_PASSWORD"), "basic auth password")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	f.BoolVar(&opts.showCtx, "contexts", false, "print the live contexts after the turn")
	_ = cmd.MarkFlagRequired("intent")

	return cmd
}

func runSend(ctx context.Context, opts *sendOptions) error {
	params, err := parseParams(opts.params)
	if err != nil {
		return err
	}

	jar, err := replay.Load(opts.jarPath, opts.session)
	if err != nil {
		return err
	}
	if jar.Session == "" {
		jar.Session = "projects/shoeshop/agent/sessions/" + uuid.NewString()
	}

	guard := resilience.NewGuard("webhook", resilience.Config{MaxRetries: 0, InitialBackoff: time.Second, MaxConcurrency: 1})
	client := infra.NewWebhookClient(&http.Client{Timeout: opts.timeout}, opts.url, guard).
		WithBearer(opts.token).
		WithBasicAuth(opts.basicUser, opts.basicPass)

	resp, err := client.Send(ctx, jar.Request(opts.intent, opts.text, params))
	if err != nil {
		return err
	}
	if err := jar.Apply(resp); err != nil {
		return err
	}
	if err := jar.Save(opts.jarPath); err != nil {
		return fmt.Errorf("save jar: %w", err)
	}

	fmt.Println(resp.FulfillmentText)
	if opts.showCtx {
		fmt.Println()
		for _, c := range jar.Live() {
			fmt.Printf("  %-28s lifespan=%d\n", c.Tag(), c.LifespanCount)
		}
	}
	return nil
}

// parseParams reads key=value pairs. Values that parse as JSON (numbers,
// arrays, objects, booleans) keep their JSON type; anything else is a
// string, the way the platform sends free-text slots.
func parseParams(pairs []string) (chatdomain.Params, error) {
	params := chatdomain.Params{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		params[key] = parseValue(raw)
	}
	return params, nil
}

func parseValue(raw string) any {
	if _, err := strconv.ParseFloat(raw, 64); err == nil || strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") || raw == "true" || raw == "false" {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	}
	return raw
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
