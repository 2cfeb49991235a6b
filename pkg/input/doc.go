// Package input provides the executor nodes sampling driver controls:
// the mode selector, the setup button and the accelerator pedal.
//
// Buttons are edge-triggered: a listener is notified exactly once per
// observed state transition, never on every tick.
package input
