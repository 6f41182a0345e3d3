package ledger

// AccountStorageOverhead is the number of bytes every account is charged for
// on top of its data.
const AccountStorageOverhead = 128

const (
	DefaultLamportsPerByteYear = 3480
	DefaultExemptionThreshold  = 2.0
)

// Rent determines the balance an account must hold to remain on the ledger.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
}

func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: DefaultLamportsPerByteYear,
		ExemptionThreshold:  DefaultExemptionThreshold,
	}
}

// MinimumBalance returns the lamports an account of size bytes needs to be
// rent exempt.
func (r Rent) MinimumBalance(size int) uint64 {
	bytes := uint64(AccountStorageOverhead + size)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports covers an account of size bytes.
func (r Rent) IsExempt(lamports uint64, size int) bool {
	return lamports >= r.MinimumBalance(size)
}
