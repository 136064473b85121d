package boot

// Result is everything Boot hands back to the caller once FDT parsing,
// device probing, and kernel composition have run. Kernel is nil only
// if composeKernel itself failed before producing one.
type Result struct {
	Early   *EarlyInfo
	Cmdline string
	Args    map[string]string
	Kernel  *Kernel
}
