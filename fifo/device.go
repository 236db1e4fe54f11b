package fifo

//go:generate mockgen -destination "mock_device_test.go" -package $GOPACKAGE -write_package_comment=false github.com/sarchlab/hwconform/fifo Device

// Device is the signal-level interface of a synchronous FWFT FIFO. Setters
// take effect at the next rising edge. Getters return the outputs of the
// current cycle.
type Device interface {
	Params() Params

	SetResetN(v bool)
	SetWrEn(v bool)
	SetWrData(v uint64)
	SetRdEn(v bool)

	Empty() bool
	Full() bool
	AlmostEmpty() bool
	AlmostFull() bool
	RdData() uint64
}
