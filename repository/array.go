package repository

import "github.com/lib/pq"

func pqArray(in []string) pq.StringArray {
	out := make(pq.StringArray, len(in))
	copy(out, in)
	return out
}
