package entitymanager

import "errors"

var (
	ErrNotFound             = errors.New("entitymanager: entity not found")
	ErrIncompletePrimaryKey = errors.New("entitymanager: primary key is incomplete")
)
