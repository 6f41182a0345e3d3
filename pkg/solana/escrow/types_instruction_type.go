package escrow

type InstructionType uint8

const (
	InstructionTypeMake InstructionType = iota
	InstructionTypeTake
	InstructionTypeRefund
)

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeMake:
		return "make"
	case InstructionTypeTake:
		return "take"
	case InstructionTypeRefund:
		return "refund"
	}
	return "unknown"
}

// ParseInstructionType splits instruction data into its opcode and payload.
func ParseInstructionType(data []byte) (InstructionType, []byte, error) {
	if len(data) == 0 {
		return 0, nil, ErrInvalidInstructionData
	}

	switch t := InstructionType(data[0]); t {
	case InstructionTypeMake, InstructionTypeTake, InstructionTypeRefund:
		return t, data[1:], nil
	default:
		return 0, nil, ErrInvalidInstructionData
	}
}

func putInstructionType(dst []byte, v InstructionType, offset *int) {
	dst[*offset] = uint8(v)
	*offset += 1
}
