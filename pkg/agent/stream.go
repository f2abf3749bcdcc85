package agent

import (
	"iter"
	"strings"
	"time"

	"github.com/rhuss/chatkit/pkg/api"
	"github.com/rhuss/chatkit/pkg/debug"
	"github.com/rhuss/chatkit/pkg/provider"
)

// streamState tracks the assistant message being assembled from provider
// events.
type streamState struct {
	threadID string
	item     *api.ThreadItem // nil until the first text arrives
	text     strings.Builder
	partDone bool
}

// StreamResponse turns a run's provider events into thread stream events.
// One assistant message is produced per run:
//
//	thread.item.added
//	thread.item.updated  (content_part.added)
//	thread.item.updated  (text_delta, repeated)
//	thread.item.updated  (content_part.done)
//	thread.item.done
//
// Tool call and reasoning deltas are ignored. A provider error ends the
// sequence with that error. Stopping iteration cancels the run.
func StreamResponse(actx *Context, result *RunResult) iter.Seq2[api.ThreadStreamEvent, error] {
	return func(yield func(api.ThreadStreamEvent, error) bool) {
		defer result.cancel()

		state := &streamState{}
		if actx != nil && actx.Thread != nil {
			state.threadID = actx.Thread.ID
		}

		for {
			if err := result.ctx.Err(); err != nil {
				yield(api.ThreadStreamEvent{}, err)
				return
			}

			var (
				ev provider.ProviderEvent
				ok bool
			)
			select {
			case ev, ok = <-result.events:
			case <-result.ctx.Done():
				yield(api.ThreadStreamEvent{}, result.ctx.Err())
				return
			}
			if !ok {
				// The provider closed the stream without a done event.
				if err := result.ctx.Err(); err != nil {
					yield(api.ThreadStreamEvent{}, err)
					return
				}
				for _, out := range state.finish() {
					if !yield(out, nil) {
						return
					}
				}
				return
			}

			switch ev.Type {
			case provider.ProviderEventError:
				yield(api.ThreadStreamEvent{}, ev.Err)
				return

			case provider.ProviderEventDone:
				debug.Log("agent", "run finished", "finish_reason", ev.FinishReason, "chars", state.text.Len())
				for _, out := range state.finish() {
					if !yield(out, nil) {
						return
					}
				}
				return

			default:
				for _, out := range state.apply(ev) {
					if !yield(out, nil) {
						return
					}
				}
			}
		}
	}
}

// apply maps a single non-terminal provider event.
func (s *streamState) apply(ev provider.ProviderEvent) []api.ThreadStreamEvent {
	switch ev.Type {
	case provider.ProviderEventTextDelta:
		if ev.Delta == "" {
			return nil
		}
		var events []api.ThreadStreamEvent
		if s.item == nil {
			events = append(events, s.start()...)
		}
		s.text.WriteString(ev.Delta)
		events = append(events, api.ItemUpdatedEvent(s.item.ID, &api.ItemUpdate{
			Type:  api.UpdateTextDelta,
			Delta: ev.Delta,
		}))
		return events

	case provider.ProviderEventTextDone:
		return s.closePart()

	default:
		// Tool calls and reasoning are not surfaced to the thread.
		debug.Trace("agent", "ignored provider event", "type", ev.Type.String())
		return nil
	}
}

// start opens the assistant message and its single content part.
func (s *streamState) start() []api.ThreadStreamEvent {
	s.item = &api.ThreadItem{
		ID:        api.NewItemID(api.ItemTypeAssistantMessage),
		ThreadID:  s.threadID,
		CreatedAt: time.Now().UTC(),
		Type:      api.ItemTypeAssistantMessage,
		AssistantMessage: &api.AssistantMessageData{
			Content: []api.AssistantContent{},
		},
	}
	added := *s.item
	return []api.ThreadStreamEvent{
		api.ItemAddedEvent(&added),
		api.ItemUpdatedEvent(s.item.ID, &api.ItemUpdate{
			Type:    api.UpdateContentPartAdded,
			Content: &api.AssistantContent{Type: api.ContentTypeOutputText},
		}),
	}
}

func (s *streamState) closePart() []api.ThreadStreamEvent {
	if s.item == nil || s.partDone {
		return nil
	}
	s.partDone = true
	return []api.ThreadStreamEvent{
		api.ItemUpdatedEvent(s.item.ID, &api.ItemUpdate{
			Type:    api.UpdateContentPartDone,
			Content: &api.AssistantContent{Type: api.ContentTypeOutputText, Text: s.text.String()},
		}),
	}
}

// finish completes the assistant message. A run that produced no text
// produces no item.
func (s *streamState) finish() []api.ThreadStreamEvent {
	if s.item == nil {
		return nil
	}
	events := s.closePart()
	done := *s.item
	done.AssistantMessage = &api.AssistantMessageData{
		Content: []api.AssistantContent{{Type: api.ContentTypeOutputText, Text: s.text.String()}},
	}
	return append(events, api.ItemDoneEvent(&done))
}
