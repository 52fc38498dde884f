package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrUpstream     = errors.New("upstream error")
	ErrRepository   = errors.New("repository error")
	ErrEncodeFailed = errors.New("encode failed")
)

func wrapUpstream(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

func wrapRepo(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRepository, err)
}

func wrapEncode(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
}
