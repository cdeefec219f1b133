package domain

import "errors"

// Kind groups errors by how a caller is expected to react to them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation rejects malformed input; nothing else is affected.
	KindValidation
	// KindState rejects an operation whose preconditions do not hold right now.
	KindState
	// KindNotFound reports an unknown session, participant or bot.
	KindNotFound
)

// Code is a machine-readable error code.
type Code string

const (
	CodeOutOfRange        Code = "URGENCY_OUT_OF_RANGE"
	CodeInvalidContent    Code = "INVALID_CONTENT"
	CodeInvalidSession    Code = "INVALID_SESSION"
	CodeInvalidBot        Code = "INVALID_BOT"
	CodeNotLive           Code = "SESSION_NOT_LIVE"
	CodeSessionEnded      Code = "SESSION_ENDED"
	CodeNotFloorHolder    Code = "NOT_FLOOR_HOLDER"
	CodeAlreadySpeaking   Code = "ALREADY_SPEAKING"
	CodeAlreadyUsed       Code = "OVERRIDE_ALREADY_USED"
	CodeInvalidTransition Code = "SESSION_INVALID_TRANSITION"
	CodeAlreadyLive       Code = "SESSION_ALREADY_LIVE"
	CodeRegistrationShut  Code = "REGISTRATION_CLOSED"
	CodeSessionFull       Code = "SESSION_FULL"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeBotNameTaken      Code = "BOT_NAME_TAKEN"
	CodeNotRegistered     Code = "NOT_REGISTERED"
	CodeSessionNotFound   Code = "SESSION_NOT_FOUND"
	CodeBotNotFound       Code = "BOT_NOT_FOUND"
)

// Error is a domain failure with a stable code. Sentinel values are compared
// with errors.Is; wrap them with fmt.Errorf("%w") to add detail.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrOutOfRange     = &Error{Kind: KindValidation, Code: CodeOutOfRange, Message: "urgency score must be between 1 and 100"}
	ErrInvalidContent = &Error{Kind: KindValidation, Code: CodeInvalidContent, Message: "invalid content"}
	ErrInvalidSession = &Error{Kind: KindValidation, Code: CodeInvalidSession, Message: "invalid session"}
	ErrInvalidBot     = &Error{Kind: KindValidation, Code: CodeInvalidBot, Message: "invalid bot"}

	ErrNotLive            = &Error{Kind: KindState, Code: CodeNotLive, Message: "session is not live"}
	ErrSessionEnded       = &Error{Kind: KindState, Code: CodeSessionEnded, Message: "session has ended"}
	ErrNotFloorHolder     = &Error{Kind: KindState, Code: CodeNotFloorHolder, Message: "participant does not hold the floor"}
	ErrAlreadySpeaking    = &Error{Kind: KindState, Code: CodeAlreadySpeaking, Message: "participant already holds the floor"}
	ErrAlreadyUsed        = &Error{Kind: KindState, Code: CodeAlreadyUsed, Message: "human override already used"}
	ErrInvalidTransition  = &Error{Kind: KindState, Code: CodeInvalidTransition, Message: "invalid session phase transition"}
	ErrAlreadyLive        = &Error{Kind: KindState, Code: CodeAlreadyLive, Message: "session already started"}
	ErrRegistrationClosed = &Error{Kind: KindState, Code: CodeRegistrationShut, Message: "session registration is closed"}
	ErrSessionFull        = &Error{Kind: KindState, Code: CodeSessionFull, Message: "session is full"}
	ErrAlreadyRegistered  = &Error{Kind: KindState, Code: CodeAlreadyRegistered, Message: "bot already registered for this session"}
	ErrBotNameTaken       = &Error{Kind: KindState, Code: CodeBotNameTaken, Message: "bot name already registered"}

	ErrNotRegistered   = &Error{Kind: KindNotFound, Code: CodeNotRegistered, Message: "participant is not registered for this session"}
	ErrSessionNotFound = &Error{Kind: KindNotFound, Code: CodeSessionNotFound, Message: "session not found"}
	ErrBotNotFound     = &Error{Kind: KindNotFound, Code: CodeBotNotFound, Message: "bot not found"}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
