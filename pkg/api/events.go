package api

// StreamEventType identifies the type of a thread stream event.
type StreamEventType string

const (
	EventThreadCreated     StreamEventType = "thread.created"
	EventThreadItemAdded   StreamEventType = "thread.item.added"
	EventThreadItemUpdated StreamEventType = "thread.item.updated"
	EventThreadItemDone    StreamEventType = "thread.item.done"
	EventProgressUpdate    StreamEventType = "progress_update"
	EventError             StreamEventType = "error"
)

// ItemUpdateType identifies an incremental change to an in-progress item.
type ItemUpdateType string

const (
	UpdateContentPartAdded ItemUpdateType = "assistant_message.content_part.added"
	UpdateTextDelta        ItemUpdateType = "assistant_message.content_part.text_delta"
	UpdateContentPartDone  ItemUpdateType = "assistant_message.content_part.done"
)

// ItemUpdate describes an incremental change to the item named by
// ThreadStreamEvent.ItemID.
type ItemUpdate struct {
	Type         ItemUpdateType    `json:"type"`
	ContentIndex int               `json:"content_index"`
	Delta        string            `json:"delta,omitempty"`
	Content      *AssistantContent `json:"content,omitempty"`
}

// ThreadStreamEvent is one event emitted while a thread is being answered.
// Which pointer is set depends on Type.
type ThreadStreamEvent struct {
	Type   StreamEventType `json:"type"`
	Thread *Thread         `json:"thread,omitempty"`
	Item   *ThreadItem     `json:"item,omitempty"`
	ItemID string          `json:"item_id,omitempty"`
	Update *ItemUpdate     `json:"update,omitempty"`
	Text   string          `json:"text,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

// ThreadCreatedEvent announces a newly created thread.
func ThreadCreatedEvent(t *Thread) ThreadStreamEvent {
	return ThreadStreamEvent{Type: EventThreadCreated, Thread: t}
}

// ItemAddedEvent announces an item that has started streaming.
func ItemAddedEvent(item *ThreadItem) ThreadStreamEvent {
	return ThreadStreamEvent{Type: EventThreadItemAdded, Item: item}
}

// ItemUpdatedEvent carries an incremental update to an item.
func ItemUpdatedEvent(itemID string, u *ItemUpdate) ThreadStreamEvent {
	return ThreadStreamEvent{Type: EventThreadItemUpdated, ItemID: itemID, Update: u}
}

// ItemDoneEvent carries the final form of an item. Items announced this
// way are persisted to the thread.
func ItemDoneEvent(item *ThreadItem) ThreadStreamEvent {
	return ThreadStreamEvent{Type: EventThreadItemDone, Item: item}
}

// ErrorEvent reports a failure to the client in-band.
func ErrorEvent(err *APIError) ThreadStreamEvent {
	return ThreadStreamEvent{Type: EventError, Error: err}
}
