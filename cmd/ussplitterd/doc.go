// Command ussplitterd runs the audio-separation daemon and bundles the
// operator utilities for inspecting its queue, models, and configuration.
package main
