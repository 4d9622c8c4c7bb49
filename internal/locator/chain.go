package locator

import (
	"errors"
	"fmt"
)

// DefaultNamespace terminates every override chain.
const DefaultNamespace = "default"

// MaxHops bounds the length of an override chain.
const MaxHops = 16

// ErrUnterminatedChain is returned for cyclic or overlong override chains.
var ErrUnterminatedChain = errors.New("namespace chain does not terminate")

// Chain follows override links from start and returns the namespaces from
// most to least specific, always ending at DefaultNamespace. links maps a
// namespace to the namespace it overrides; a missing or empty entry means
// the namespace overrides DefaultNamespace directly.
func Chain(links map[string]string, start string) ([]string, error) {
	if start == "" {
		start = DefaultNamespace
	}
	chain := make([]string, 0, 4)
	seen := make(map[string]bool)
	for ns := start; ; {
		if seen[ns] {
			return nil, fmt.Errorf("%w: %s revisited after %v", ErrUnterminatedChain, ns, chain)
		}
		if len(chain) >= MaxHops {
			return nil, fmt.Errorf("%w: more than %d hops from %s", ErrUnterminatedChain, MaxHops, start)
		}
		seen[ns] = true
		chain = append(chain, ns)
		if ns == DefaultNamespace {
			return chain, nil
		}
		next := links[ns]
		if next == "" {
			next = DefaultNamespace
		}
		ns = next
	}
}
