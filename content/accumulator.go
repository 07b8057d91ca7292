package content

import "strings"

// ArgumentKey identifies a streamed argument buffer.
type ArgumentKey struct {
	ItemID string
	Index  int
}

// Accumulator collects streamed function call argument fragments. Fragments are
// kept as text until Complete; partial JSON is never parsed. It is not safe for
// concurrent use.
type Accumulator struct {
	buffers map[ArgumentKey]*strings.Builder
	owners  map[ArgumentKey]string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		buffers: make(map[ArgumentKey]*strings.Builder),
		owners:  make(map[ArgumentKey]string),
	}
}

func (a *Accumulator) Append(key ArgumentKey, fragment string) {
	b, ok := a.buffers[key]
	if !ok {
		b = &strings.Builder{}
		a.buffers[key] = b
	}
	b.WriteString(fragment)
}

// AppendResponse is Append for a buffer owned by the given response, so that
// DiscardResponse can drop it without touching other responses.
func (a *Accumulator) AppendResponse(responseID string, key ArgumentKey, fragment string) {
	a.Append(key, fragment)
	if responseID != "" {
		a.owners[key] = responseID
	}
}

// DiscardResponse drops the buffers still open for responseID.
func (a *Accumulator) DiscardResponse(responseID string) {
	if responseID == "" {
		return
	}
	for key, owner := range a.owners {
		if owner == responseID {
			delete(a.owners, key)
			delete(a.buffers, key)
		}
	}
}

// Pending returns the text accumulated so far.
func (a *Accumulator) Pending(key ArgumentKey) (string, bool) {
	b, ok := a.buffers[key]
	if !ok {
		return "", false
	}
	return b.String(), true
}

// Complete removes the buffer for key and returns its text. ok is false when
// nothing was accumulated.
func (a *Accumulator) Complete(key ArgumentKey) (string, bool) {
	b, ok := a.buffers[key]
	if !ok {
		return "", false
	}
	delete(a.buffers, key)
	delete(a.owners, key)
	return b.String(), true
}

// CompleteCall finishes the buffer for key into a function call. The raw text is
// kept when it does not parse as a JSON object.
func (a *Accumulator) CompleteCall(key ArgumentKey, callID, name string) (FunctionCall, bool) {
	raw, ok := a.Complete(key)
	if !ok {
		return FunctionCall{}, false
	}
	call := FunctionCall{CallID: callID, Name: name, RawArguments: raw}
	if args, err := ParseArguments(raw); err == nil {
		call.Arguments = args
	}
	return call, true
}
