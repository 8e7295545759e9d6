package assign

import "fmt"

// Name identifies a built-in assignment policy by its config string.
type Name string

const (
	NameEven   Name = "even"
	NameGreedy Name = "greedy"
)

// ByName resolves a built-in policy by its config name. Custom policies
// are not resolvable this way — callers that implement Policy[S]
// themselves should construct and pass it directly rather than going
// through a name.
func ByName[S comparable](name Name) (Policy[S], error) {
	switch name {
	case NameEven:
		return Even[S]{}, nil
	case NameGreedy:
		return Greedy[S]{}, nil
	default:
		return nil, fmt.Errorf("assign: unknown policy %q", name)
	}
}
