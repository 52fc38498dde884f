package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrTooLarge = errors.New("too large to resolve")
var ErrNoParts = errors.New("no resolvable parts")
var ErrInvalidAsset = errors.New("invalid asset")
var ErrAlreadyExists = errors.New("already exists")
