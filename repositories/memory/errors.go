package memory

import "errors"

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrProposalExists   = errors.New("proposal already exists")
)
