package events

import "time"

// ChangeEvent is broadcast on every catalog mutation, e.g.
// {"type":"anime.created","id":"...","at":"..."}.
type ChangeEvent struct {
	Type string    `json:"type"`
	ID   string    `json:"id"`
	At   time.Time `json:"at"`
}

func Created(collection, id string) ChangeEvent {
	return ChangeEvent{Type: collection + ".created", ID: id, At: time.Now().UTC()}
}

func Updated(collection, id string) ChangeEvent {
	return ChangeEvent{Type: collection + ".updated", ID: id, At: time.Now().UTC()}
}

func Deleted(collection, id string) ChangeEvent {
	return ChangeEvent{Type: collection + ".deleted", ID: id, At: time.Now().UTC()}
}
