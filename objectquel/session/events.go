package session

import (
	"time"
)

type SessionScopeStartedEvent struct {
	Session Session
}

type SessionScopeEndedEvent struct {
	Session Session
}

type QueryStartedEvent struct {
	Query   string
	Params  []any
	Session DbSession
}

type QueryEndedEvent struct {
	Query        string
	Params       []any
	Session      DbSession
	ResponseTime time.Duration
	Err          error
}
