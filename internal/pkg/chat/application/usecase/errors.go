package usecase

import "errors"

// ErrPersistence indicates an infrastructure/store failure inside a use case.
var ErrPersistence = errors.New("chat use case persistence error")

// ErrAccessDenied indicates the identity may not join the requested channel.
var ErrAccessDenied = errors.New("chat use case access denied")
