package errors

// Error codes for the ssakit toolchain.
// Codes appear in verifier output, CLI diagnostics and language server
// messages so a failure can be looked up independently of its wording.
//
// Error code ranges:
// E0100-E0199: Front-end (parser) errors
// E0200-E0299: Type system errors
// E0300-E0399: Module and symbol errors
// E0600-E0699: Control flow and SSA form errors
// E0900-E0999: Execution engine errors

const (
	// E0100: Source text could not be parsed
	ErrorSyntax = "E0100"

	// E0101: Loop brackets do not pair up
	ErrorUnbalancedLoop = "E0101"

	// E0102: A loop is entered where the current cell is always zero
	ErrorDeadLoop = "E0102"

	// E0200: Operand or result types disagree
	ErrorTypeMismatch = "E0200"

	// E0201: A struct is used where its layout must be known but has no body
	ErrorIncompleteStruct = "E0201"

	// E0202: A struct body was assigned more than once
	ErrorStructRedefined = "E0202"

	// E0203: An operand is of the wrong kind (void value, non-pointer address, ...)
	ErrorInvalidOperand = "E0203"

	// E0204: Call argument count does not match the callee signature
	ErrorCallArity = "E0204"

	// E0205: Aggregate or struct field index out of range
	ErrorInvalidIndex = "E0205"

	// E0300: A value from another function or module is referenced
	ErrorForeignReference = "E0300"

	// E0301: A symbol or instruction name could not be interned
	ErrorInvalidName = "E0301"

	// E0302: A switch lists the same case value twice
	ErrorDuplicateCase = "E0302"

	// E0600: Block does not end in a terminator
	ErrorMissingTerminator = "E0600"

	// E0601: Terminator found before the end of a block
	ErrorMisplacedTerminator = "E0601"

	// E0602: The entry block is the target of a branch
	ErrorEntryHasPredecessors = "E0602"

	// E0603: Phi node after a non-phi instruction
	ErrorMisplacedPhi = "E0603"

	// E0604: Phi incoming blocks differ from the block's predecessors
	ErrorPhiPredecessors = "E0604"

	// E0605: A use is not dominated by its definition
	ErrorUndominatedUse = "E0605"

	// E0900: Engine could not be initialized
	ErrorEngineInit = "E0900"

	// E0901: External symbol could not be resolved
	ErrorUnresolvedSymbol = "E0901"
)
