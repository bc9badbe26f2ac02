package repository

import "github.com/alexanderramin/gridboard/internal/domain"

// ErrNotFound is returned when a requested row does not exist. It is the
// domain sentinel so callers can errors.Is against either package.
var ErrNotFound = domain.ErrNotFound
