package entities

import "errors"

var ErrStoreEntityNotFound = errors.New("store resource not found")
var ErrFetchInProgress = errors.New("fetch already in progress")
var ErrSessionCancelled = errors.New("fetch session cancelled")
