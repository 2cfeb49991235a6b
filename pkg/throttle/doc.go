// Package throttle assembles the drive-by-wire throttle controller.
//
// The pedal signal flows through the pipeline on the executor goroutine:
//
//	Accelerator -> Formatter -> Hold -> SlidingAverage -> AdaptiveExp
//	  -> Controller -> Gain -> Commander -> motor
//
// The Formatter maps raw ADC readings to percent and the Hold clocks
// the filters at the executor rate. The Controller maps percent to
// stepper positions within the limit of the selected mode. Holding
// the setup button enables the Controller, pressing it disables the
// Controller and the motor keeps its position.
//
// The status LED blinks while control is enabled and blinks a fault
// code when the pedal or the ECU link fails.
package throttle
