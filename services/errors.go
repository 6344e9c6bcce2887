package services

import "errors"

// Error taxonomy shared across engines. Handlers and the scheduler translate
// these with errors.Is; anything else is treated as a persistence failure.
var (
	// ErrDuplicateVote: a (user, meme, voteType) vote already exists.
	// Surfaced from the unique index, never from a pre-check.
	ErrDuplicateVote = errors.New("duplicate vote")

	// ErrVotingClosed: the meme is not in a live voting window.
	ErrVotingClosed = errors.New("voting is not open for this meme")

	// ErrMemeNotFound is returned for votes against unknown meme IDs.
	ErrMemeNotFound = errors.New("meme not found")

	// ErrInvalidVote covers malformed choice/score payloads.
	ErrInvalidVote = errors.New("invalid vote")

	// ErrDrawAlreadyExecuted: a completed draw exists for the period.
	ErrDrawAlreadyExecuted = errors.New("lottery draw already executed for this period")

	// ErrUnknownTask: manual trigger asked for a task not in the schedule table.
	ErrUnknownTask = errors.New("unknown scheduler task")
)
