package game

import "bytes"

// WordBuffer is the word being assembled, in click order.
//
// Removal is by value: RemoveAll drops every copy of a letter, not just the
// one the deselected entity contributed. With duplicate letters on the board
// this is probably not what players expect, but it is how the game behaves.
type WordBuffer struct {
	chars []byte
}

func (b *WordBuffer) Append(ch byte) { b.chars = append(b.chars, ch) }

// RemoveAll deletes every occurrence of ch, keeping the order of the rest.
func (b *WordBuffer) RemoveAll(ch byte) {
	out := b.chars[:0]
	for _, c := range b.chars {
		if c != ch {
			out = append(out, c)
		}
	}
	b.chars = out
}

func (b *WordBuffer) Clear() { b.chars = b.chars[:0] }

func (b *WordBuffer) Len() int { return len(b.chars) }

func (b *WordBuffer) String() string { return string(b.chars) }

// Equal reports whether two buffers hold the same characters.
func (b *WordBuffer) Equal(o *WordBuffer) bool { return bytes.Equal(b.chars, o.chars) }
