package domain

import "errors"

// ErrNotFound marks a reference to an entity that does not exist, such as
// creating an incident from a missing alert. It signals a caller mistake,
// not a transient condition; callers must not retry blindly. Wrap it with
// the entity kind and id: fmt.Errorf("alert %s: %w", id, ErrNotFound).
var ErrNotFound = errors.New("not found")
