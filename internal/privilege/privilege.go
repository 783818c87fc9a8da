// Package privilege defines the ordered privilege levels used for authorization.
package privilege

import "fmt"

// Level is a privilege level as stored on a user row.
type Level string

// Known levels.
const (
	Admin        Level = "Admin"
	Librarian    Level = "Librarian"
	Registered   Level = "Registered"
	UnRegistered Level = "UnRegistered"
)

// rank declares the trust order explicitly; higher is more trusted.
// Unknown levels get rank 0.
var rank = map[Level]int{
	Admin:        4,
	Librarian:    3,
	Registered:   2,
	UnRegistered: 1,
}

// Staff is the set allowed to manage circulation on behalf of others.
var Staff = []Level{Admin, Librarian}

// All returns the known levels from most to least trusted.
func All() []Level { return []Level{Admin, Librarian, Registered, UnRegistered} }

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool { return rank[l] > 0 }

func (l Level) String() string { return string(l) }

// Parse converts a stored or user-supplied value into a Level.
func Parse(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown privilege level %q", s)
	}
	return l, nil
}

// Compare returns -1, 0 or +1 when a is less, equally or more trusted than b.
func Compare(a, b Level) int {
	ra, rb := rank[a], rank[b]
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether actual is a known level at least as trusted as min.
func AtLeast(actual, min Level) bool {
	return actual.Valid() && Compare(actual, min) >= 0
}

// Satisfies reports whether actual is a member of allowed. It is a set check,
// not a range check: callers list every level they accept.
func Satisfies(actual Level, allowed ...Level) bool {
	if !actual.Valid() {
		return false
	}
	for _, a := range allowed {
		if a == actual {
			return true
		}
	}
	return false
}
