package layout

// Target describes the data layout of the host the engine models.
//
// Only the 64-bit little-endian model is implemented.
type Target struct {
	Name     string
	PtrSize  int // bytes
	PtrAlign int // bytes
}

// Host64 is the model used by the execution engine
func Host64() Target {
	return Target{
		Name:     "x86_64-little-endian",
		PtrSize:  8,
		PtrAlign: 8,
	}
}
