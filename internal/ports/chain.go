package ports

// BuildChain returns the ports to try in order: the configured port first,
// then each fallback not already present. Ports outside 1-65535 are skipped.
func BuildChain(configured int, fallbacks []int) []int {
	chain := make([]int, 0, len(fallbacks)+1)
	seen := make(map[int]struct{}, len(fallbacks)+1)
	add := func(port int) {
		if port < 1 || port > 65535 {
			return
		}
		if _, ok := seen[port]; ok {
			return
		}
		seen[port] = struct{}{}
		chain = append(chain, port)
	}
	add(configured)
	for _, port := range fallbacks {
		add(port)
	}
	return chain
}
