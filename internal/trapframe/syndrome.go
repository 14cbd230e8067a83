package trapframe

// Fault further classifies an InstructionAbort or DataAbort syndrome by
// its DFSC/IFSC sub-field.
type Fault int

const (
	FaultAddressSize Fault = iota
	FaultTranslation
	FaultAccessFlag
	FaultPermission
	FaultAlignment
	FaultTlbConflict
	FaultOther
)

// faultCode carries FaultOther's raw sub-code, since the simple Fault enum
// above can't.
type faultCode struct {
	kind Fault
	raw  uint8
}

func decodeFault(esr uint32) faultCode {
	code := uint8(esr & 0x3F)
	switch code {
	case 0b000000, 0b000001, 0b000010, 0b000011:
		return faultCode{FaultAddressSize, code}
	case 0b000100, 0b000101, 0b000110, 0b000111:
		return faultCode{FaultTranslation, code}
	case 0b001001, 0b001010, 0b001011:
		return faultCode{FaultAccessFlag, code}
	case 0b001101, 0b001110, 0b001111:
		return faultCode{FaultPermission, code}
	case 0b100001:
		return faultCode{FaultAlignment, code}
	case 0b110000:
		return faultCode{FaultTlbConflict, code}
	default:
		return faultCode{FaultOther, code}
	}
}

// SyndromeKind tags the variant of a decoded Syndrome.
type SyndromeKind int

const (
	Unknown SyndromeKind = iota
	WfiWfe
	SimdFp
	IllegalExecutionState
	Svc
	Hvc
	Smc
	MsrMrsSystem
	InstructionAbort
	PCAlignmentFault
	DataAbort
	SpAlignmentFault
	TrappedFpu
	ErrorSError
	Breakpoint
	Step
	Watchpoint
	Brk
	Other
)

// Syndrome is the decoded view of the ESR_EL1 exception syndrome register.
// Only the fields relevant to its Kind are meaningful; e.g. Imm16 is only
// set for Svc/Hvc/Smc/Brk, Abort only for InstructionAbort/DataAbort.
type Syndrome struct {
	Kind  SyndromeKind
	Imm16 uint16
	Abort struct {
		Fault Fault
		Level uint8
	}
	Raw uint32
}

// DecodeSyndrome classifies a raw ESR_EL1 value (ref: ARMv8 D1.10.4: the EC
// field selects the exception class, ISS carries class-specific detail).
func DecodeSyndrome(esr uint32) Syndrome {
	ec := (esr >> 26) & 0x3F
	issHSVC := uint16(esr & 0xFFFF)
	issBrk := uint16(esr & 0xFFFF)

	mkAbort := func(kind SyndromeKind) Syndrome {
		s := Syndrome{Kind: kind, Raw: esr}
		fc := decodeFault(esr)
		s.Abort.Fault = fc.kind
		s.Abort.Level = uint8(issHSVC & 0b11)
		return s
	}

	switch ec {
	case 0b000000:
		return Syndrome{Kind: Unknown, Raw: esr}
	case 0b000001:
		return Syndrome{Kind: WfiWfe, Raw: esr}
	case 0b000111:
		return Syndrome{Kind: SimdFp, Raw: esr}
	case 0b001110:
		return Syndrome{Kind: IllegalExecutionState, Raw: esr}
	case 0b010101:
		return Syndrome{Kind: Svc, Imm16: issHSVC, Raw: esr}
	case 0b010110:
		return Syndrome{Kind: Hvc, Imm16: issHSVC, Raw: esr}
	case 0b010111:
		return Syndrome{Kind: Smc, Imm16: issHSVC, Raw: esr}
	case 0b011000:
		return Syndrome{Kind: MsrMrsSystem, Raw: esr}
	case 0b100000, 0b100001:
		return mkAbort(InstructionAbort)
	case 0b100010:
		return Syndrome{Kind: PCAlignmentFault, Raw: esr}
	case 0b100100, 0b100101:
		return mkAbort(DataAbort)
	case 0b100110:
		return Syndrome{Kind: SpAlignmentFault, Raw: esr}
	case 0b101000, 0b101100:
		return Syndrome{Kind: TrappedFpu, Raw: esr}
	case 0b101111:
		return Syndrome{Kind: ErrorSError, Raw: esr}
	case 0b110000, 0b110001:
		return Syndrome{Kind: Breakpoint, Raw: esr}
	case 0b110010, 0b110011:
		return Syndrome{Kind: Step, Raw: esr}
	case 0b110100, 0b110101:
		return Syndrome{Kind: Watchpoint, Raw: esr}
	case 0b111100:
		return Syndrome{Kind: Brk, Imm16: issBrk, Raw: esr}
	default:
		return Syndrome{Kind: Other, Raw: esr}
	}
}
