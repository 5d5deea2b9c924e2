// Package condense keeps a conversation history within a budget, either by
// dropping old turns or by folding them into a summary.
package condense

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/observe"
)

// SummaryPrefix starts every summary message produced by Summarize.
const SummaryPrefix = "[Previous conversation summary]"

// ErrInvalidLimit is returned for non-positive message limits.
var ErrInvalidLimit = errors.New("invalid limit")

// TokenCounter measures a list of messages.
type TokenCounter func(msgs []model.Message) int

// SummarizeFunc turns a run of old messages into a short summary.
type SummarizeFunc func(ctx context.Context, old []model.Message) (string, error)

// perMessageOverhead approximates role and framing tokens.
const perMessageOverhead = 4

// ApproxTokens counts roughly four characters per token plus a fixed
// overhead per message.
func ApproxTokens(msgs []model.Message) int {
	n := 0
	for _, m := range msgs {
		n += (len(m.Content)+3)/4 + perMessageOverhead
	}
	return n
}

// Trim keeps every system message and the longest run of most recent
// non-system messages that fits in maxTokens together with them. Order is
// preserved. With preserveFirst, the first user message is re-inserted after
// the leading system messages if it was dropped, even if that exceeds the
// budget. A nil counter means ApproxTokens.
func Trim(msgs []model.Message, maxTokens int, counter TokenCounter, preserveFirst bool) []model.Message {
	if counter == nil {
		counter = ApproxTokens
	}
	keep := make([]bool, len(msgs))
	var system []model.Message
	for i, m := range msgs {
		if m.Role == model.RoleSystem {
			keep[i] = true
			system = append(system, m)
		}
	}

	kept := system
	for i := len(msgs) - 1; i >= 0; i-- {
		if keep[i] {
			continue
		}
		candidate := append(append([]model.Message(nil), kept...), msgs[i])
		if counter(candidate) > maxTokens {
			break
		}
		keep[i] = true
		kept = candidate
	}

	out := make([]model.Message, 0, len(kept)+1)
	for i, m := range msgs {
		if keep[i] {
			out = append(out, m)
		}
	}
	if !preserveFirst {
		return out
	}

	first := -1
	for i, m := range msgs {
		if m.Role == model.RoleUser {
			first = i
			break
		}
	}
	if first < 0 || keep[first] {
		return out
	}
	at := 0
	for at < len(out) && out[at].Role == model.RoleSystem {
		at++
	}
	out = append(out, model.Message{})
	copy(out[at+1:], out[at:])
	out[at] = msgs[first]
	return out
}

// Summarize keeps the most recent maxMessages-1 turns and replaces everything
// older with one system message holding a summary. A leading system message
// is kept in place and not counted. Inputs already within the limit come
// back unchanged, which makes Summarize idempotent on its own output. If the
// summarizer fails, the input is returned unchanged along with the error.
func Summarize(ctx context.Context, msgs []model.Message, maxMessages int, summarize SummarizeFunc) (_ []model.Message, err error) {
	if maxMessages < 1 {
		return msgs, fmt.Errorf("%w: max messages %d", ErrInvalidLimit, maxMessages)
	}
	if len(msgs) <= maxMessages {
		return msgs, nil
	}

	var head []model.Message
	content := msgs
	if msgs[0].Role == model.RoleSystem {
		head = msgs[:1]
		content = msgs[1:]
	}
	if len(content) <= maxMessages {
		return msgs, nil
	}

	ctx, span := observe.Start(ctx, "condense.summarize")
	defer func() { observe.EndSpan(span, err) }()

	split := len(content) - (maxMessages - 1)
	old, recent := content[:split], content[split:]

	text, err := summarize(ctx, old)
	if err != nil {
		return msgs, fmt.Errorf("summarize %d messages: %w", len(old), err)
	}

	out := make([]model.Message, 0, len(head)+1+len(recent))
	out = append(out, head...)
	out = append(out, model.System(SummaryPrefix+": "+text))
	out = append(out, recent...)
	return out, nil
}
