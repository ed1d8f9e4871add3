package chat

// MessageBuffer accumulates one role's audio and text between turn
// boundaries. It is confined to the enrichment task that owns it, so no
// locking is required.
type MessageBuffer struct {
	audio []byte
	text  string

	turnComplete bool
}

// AddAudio appends a raw audio chunk to the pending turn.
func (b *MessageBuffer) AddAudio(chunk []byte) {
	b.audio = append(b.audio, chunk...)
}

// AddText appends an utterance fragment, recording the end-of-turn flag.
func (b *MessageBuffer) AddText(text string, endOfTurn bool) {
	b.text += text
	b.turnComplete = b.turnComplete || endOfTurn
}

// MarkTurnComplete closes the pending turn without adding content. Used for
// audio messages whose envelope carries end_of_turn.
func (b *MessageBuffer) MarkTurnComplete() {
	b.turnComplete = true
}

// TurnComplete reports whether the pending turn has been closed.
func (b *MessageBuffer) TurnComplete() bool {
	return b.turnComplete
}

// Audio returns the accumulated audio without draining it.
func (b *MessageBuffer) Audio() []byte {
	return b.audio
}

// Len returns the number of buffered audio bytes.
func (b *MessageBuffer) Len() int {
	return len(b.audio)
}

// Empty reports whether the buffer holds neither audio nor text.
func (b *MessageBuffer) Empty() bool {
	return len(b.audio) == 0 && b.text == ""
}

// EndTurn atomically drains the buffer, returning the accumulated audio and
// text and resetting all state for the next turn.
func (b *MessageBuffer) EndTurn() (audio []byte, text string) {
	audio, text = b.audio, b.text
	b.audio = nil
	b.text = ""
	b.turnComplete = false
	return audio, text
}
