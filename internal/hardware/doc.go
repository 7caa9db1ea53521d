// Package hardware models the physical readout device behind the hardware
// experiment backend.
//
// A DeviceSetup names the device and maps logical signals onto its ports. A
// Session owns the connection and runs one Program at a time: the program
// measures the qubit in the ground state, plays the x180 pi pulse, then
// measures again, and returns both acquisitions keyed by handle.
//
// Sessions are not safe for concurrent use. Callers serialise access; the
// experiment package does this with a mutex around every acquisition.
//
// EmulatorSession answers programs with the synthetic signal model and is used
// when no device id is configured.
package hardware
