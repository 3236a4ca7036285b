package breadcrumb

import (
	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
)

// buildChain signs and appends n breadcrumbs 15 minutes apart, cycling
// through cells so no two consecutive breadcrumbs share a cell, and
// returns the validated chain and the key that signed it.
func buildChain(n int) (*Chain, sign.PrivateKey, error) {
	key, err := sign.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	identity := key.Public()
	chain := NewChain(identity)
	v := NewValidator(DefaultPolicy())

	baseTime := int64(1_700_000_000)
	crumbs := make([]*Breadcrumb, 0, n)
	for i := 0; i < n; i++ {
		b := &Breadcrumb{
			Index:      uint64(i),
			Identity:   identity,
			Timestamp:  baseTime + int64(i)*900,
			Cell:       uint64(i % 37),
			Resolution: 9,
		}
		if i > 0 {
			b.PrevHash = crumbs[i-1].BlockHash()
		}
		b.Sign(key)
		crumbs = append(crumbs, b)
	}
	if _, err := v.Extend(chain, crumbs); err != nil {
		return nil, nil, err
	}
	return chain, key, nil
}
