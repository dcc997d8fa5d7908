package balancer

import "math/rand"

func defaultSource() uint64 {
	return rand.Uint64()
}
