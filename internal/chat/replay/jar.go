// Package replay plays the NLU platform's part in a conversation: it holds
// the active contexts between turns, echoes them back on the next request
// and ages them the way the platform does.
//
// Used by shopbotctl to drive a running webhook from the terminal and by
// tests that walk a whole conversation.
package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	chatdomain "github.com/boddenberg/shoeshop-bot-go/internal/chat/domain"
)

// Jar is the set of live contexts of one session. It is not safe for
// concurrent use; one conversation is one goroutine.
type Jar struct {
	Session  string               `json:"session"`
	Contexts []chatdomain.Context `json:"contexts"`
	index    map[chatdomain.ContextName]int
}

// NewJar creates an empty jar for session.
func NewJar(session string) *Jar {
	return &Jar{Session: session}
}

// Request builds the webhook request for the next utterance, echoing the
// live contexts.
func (j *Jar) Request(intent, text string, params chatdomain.Params) *chatdomain.WebhookRequest {
	if params == nil {
		params = chatdomain.Params{}
	}
	return &chatdomain.WebhookRequest{
		Session: j.Session,
		QueryResult: chatdomain.QueryResult{
			QueryText:      text,
			Parameters:     params,
			Intent:         chatdomain.Intent{DisplayName: intent},
			OutputContexts: j.Live(),
			LanguageCode:   "vi",
		},
	}
}

// Live returns a copy of the live contexts, sorted by name.
func (j *Jar) Live() chatdomain.ContextSet {
	out := make(chatdomain.ContextSet, len(j.Contexts))
	copy(out, j.Contexts)
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Find returns the live context with the given tag.
func (j *Jar) Find(name chatdomain.ContextName) (chatdomain.Context, bool) {
	return chatdomain.ContextSet(j.Contexts).Find(name)
}

// Apply ends a turn: every live context loses one turn of lifespan, then
// the webhook's output contexts are set. An output context with lifespan 0
// removes the context.
func (j *Jar) Apply(resp *chatdomain.WebhookResponse) error {
	aged := j.Contexts[:0]
	for _, c := range j.Contexts {
		c.LifespanCount--
		if c.LifespanCount > 0 {
			aged = append(aged, c)
		}
	}
	j.Contexts = aged
	j.reindex()

	if resp == nil {
		return nil
	}
	for _, out := range resp.OutputContexts {
		c, err := roundTrip(out)
		if err != nil {
			return fmt.Errorf("apply context %s: %w", out.Name, err)
		}
		j.set(c)
	}
	return nil
}

func (j *Jar) set(c chatdomain.Context) {
	tag := c.Tag()
	i, exists := j.index[tag]
	switch {
	case c.LifespanCount <= 0 && exists:
		j.Contexts = append(j.Contexts[:i], j.Contexts[i+1:]...)
		j.reindex()
	case c.LifespanCount <= 0:
	case exists:
		j.Contexts[i] = c
	default:
		j.Contexts = append(j.Contexts, c)
		j.index[tag] = len(j.Contexts) - 1
	}
}

func (j *Jar) reindex() {
	j.index = make(map[chatdomain.ContextName]int, len(j.Contexts))
	for i, c := range j.Contexts {
		j.index[c.Tag()] = i
	}
}

// roundTrip gives parameters the shape they have after a trip through
// the platform: plain JSON maps, slices and float64 numbers.
func roundTrip(c chatdomain.Context) (chatdomain.Context, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return chatdomain.Context{}, err
	}
	var out chatdomain.Context
	if err := json.Unmarshal(raw, &out); err != nil {
		return chatdomain.Context{}, err
	}
	return out, nil
}

// ============================================================
// Jar files
// ============================================================

// Load reads a jar file. A missing file yields an empty jar for session.
func Load(path, session string) (*Jar, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewJar(session), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read jar: %w", err)
	}

	var j Jar
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse jar %s: %w", path, err)
	}
	if session != "" && j.Session != session {
		return NewJar(session), nil
	}
	j.reindex()
	return &j, nil
}

// Save writes the jar to path.
func (j *Jar) Save(path string) error {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
