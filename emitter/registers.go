package emitter

// physReg maps a virtual register (1..8) to its physical x86-64 name,
// per the register mapping table in §4.3.1.
var physReg = [9]string{
	0: "",
	1: "rax",
	2: "rbx",
	3: "rcx",
	4: "rdx",
	5: "rsi",
	6: "rdi",
	7: "r8",
	8: "r9",
}

func phys(virtual int) string {
	return physReg[virtual]
}

// Scratch registers reserved for the emitter: r10/r11 for condition
// lowering, r15 for I/O argument passing, r12-r14 used only inside the
// I/O helpers. None alias R1-R8's physical registers (rax, rbx, rcx,
// rdx, rsi, rdi, r8, r9), so the emitter never has to save a user
// register purely to make room for a scratch.
const (
	scratchLeft  = "r10"
	scratchRight = "r11"
	scratchIO    = "r15"
)
