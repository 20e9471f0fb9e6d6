package game

import "github.com/robalobadob/wordeko/internal/physics"

// Presenter receives every visible change a session makes. Implementations
// are called from the session's loop goroutine and must not block.
type Presenter interface {
	TokenAdded(e LetterEntity, pos physics.Vec)
	TokenRemoved(id int)
	TokenMoved(id int, pos physics.Vec)
	TokenMarked(id int, selected bool)
	WordChanged(word string)
	ScoreChanged(score int)
	MusicChanged(m MusicState)
	Notify(n Notice)
	GameOver(score int)
}

// Flusher is implemented by presenters that batch events; the loop calls
// Flush after each tick and each command.
type Flusher interface {
	Flush(tick uint64)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) TokenAdded(LetterEntity, physics.Vec) {}
func (NopPresenter) TokenRemoved(int)                     {}
func (NopPresenter) TokenMoved(int, physics.Vec)          {}
func (NopPresenter) TokenMarked(int, bool)                {}
func (NopPresenter) WordChanged(string)                   {}
func (NopPresenter) ScoreChanged(int)                     {}
func (NopPresenter) MusicChanged(MusicState)              {}
func (NopPresenter) Notify(Notice)                        {}
func (NopPresenter) GameOver(int)                         {}
